// Package secrets reads provider API keys from the local secrets file.
//
// The file is the only credential source. Environment variables and flags are
// never consulted.
package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when the key is absent or empty.
var ErrNotFound = errors.New("secret not found")

// File is a KEY=VALUE secrets file.
type File struct {
	path string
}

// NewFile creates a secrets file reader for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Lookup returns the value of the first line whose key equals key exactly.
// Blank lines, "#" comments and lines without "=" are skipped. Values are taken
// literally: one pair of matching quotes is removed and nothing is expanded.
func (f *File) Lookup(key string) (string, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return "", fmt.Errorf("failed to open secrets file: %w", err)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		k, value, ok := parseLine(scanner.Text())
		if !ok || k != key {
			continue
		}
		// First match wins, even when empty.
		if value == "" {
			return "", ErrNotFound
		}
		return value, nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read secrets file: %w", err)
	}

	return "", ErrNotFound
}

func parseLine(raw string) (key, value string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "export "))
	return key, unquote(strings.TrimSpace(value)), true
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}
