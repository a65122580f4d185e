package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FactID creates a deterministic identifier for a rendered fact. The same
// source, relationship and target always hash to the same ID.
func FactID(source, relationship, target string) string {
	input := fmt.Sprintf("%s|%s|%s", source, relationship, target)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
