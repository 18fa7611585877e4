package config

// encoding.go cleans up fleet and author files saved by Windows editors and
// spreadsheet exports before they reach the YAML decoder:
//
//   - a leading UTF-8 BOM (0xEF 0xBB 0xBF) is removed
//   - invalid UTF-8 bytes (usually Latin-1 accents in author names) become '?'
//
// The decoder rejects both otherwise.

import (
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cleanText returns data without a BOM and with invalid UTF-8 replaced.
// The input is not modified.
func cleanText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}

	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
		} else {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	return out
}

// readText reads all of r and cleans it with cleanText.
func readText(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return cleanText(data), nil
}
