// Package encoding provides text encoding utilities for TES3 world files.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Windows1252ToUTF8(data []byte) string {
	decoder := charmap.Windows1252.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// UTF8ToWindows1252 converts a UTF-8 string to Windows-1252 encoded bytes.
// Returns the original bytes if the string holds unmappable runes.
func UTF8ToWindows1252(s string) []byte {
	encoder := charmap.Windows1252.NewEncoder()
	result, _, err := transform.Bytes(encoder, []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// ZString decodes a null-terminated Windows-1252 string.
// Anything after the first null byte is ignored.
func ZString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return Windows1252ToUTF8(data)
}

// PutZString encodes s as a null-terminated Windows-1252 string.
func PutZString(s string) []byte {
	return append(UTF8ToWindows1252(s), 0)
}

// FixedString encodes s into a zero padded field of the given size.
// Longer strings are truncated.
func FixedString(s string, size int) []byte {
	result := make([]byte, size)
	copy(result, UTF8ToWindows1252(s))
	return result
}

// NormalizePath normalizes a resource path for case-insensitive comparison.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "/", "\\")
	return strings.ToLower(path)
}
