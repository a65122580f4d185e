package ast

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedLanguage is returned when no parser is registered for a
	// language or file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseFailed is returned when the source could not be turned into a
	// tree at all, or the tree contains syntax errors.
	ErrParseFailed = errors.New("parse failed")
)

// ParseError reports where a syntax error was found. It unwraps to
// ErrParseFailed.
type ParseError struct {
	Language string
	Line     int // 1-indexed, 0 if unknown
	Column   int
	Message  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Language, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Language, e.Message)
}

func (e *ParseError) Unwrap() error { return ErrParseFailed }
