package util

import (
	"net/url"
	"path/filepath"
	"strings"
)

// PathToURI returns the file:// URI for path.
func PathToURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// URIToPath accepts either a plain path or a file:// URI and returns a local
// path. MCP clients send workspace roots as URIs.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return filepath.FromSlash(strings.TrimPrefix(uri, "file://"))
	}
	return filepath.FromSlash(u.Path)
}
