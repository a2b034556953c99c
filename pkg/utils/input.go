package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ISAHeaderLength is the fixed width of the ISA segment, terminator included.
const ISAHeaderLength = 106

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IsX12Data reports whether text looks like an X12 interchange.
func IsX12Data(text string) bool {
	return strings.HasPrefix(text, "ISA")
}

// IsX12File reports whether path names a regular file whose first
// ISAHeaderLength bytes start an X12 interchange. Environment variables and a
// leading ~ are expanded.
func IsX12File(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	header := make([]byte, ISAHeaderLength)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	return IsX12Data(string(bytes.TrimPrefix(header[:n], utf8BOM)))
}

// ExpandPath expands environment variables and a leading ~ in path.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Decoder returns the decoder for a character encoding name. UTF-8 input is
// passed through with any byte order mark removed.
func Decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "ISO-8859-1", "LATIN1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported character encoding %q", name)
	}
}

// ReadInput reads an interchange file and decodes it to UTF-8.
//
// PARAMETERS:
//   - path: the input file; environment variables and ~ are expanded.
//   - encodingName: UTF-8, ISO-8859-1 or Windows-1252.
//
// RETURNS:
//   - The decoded interchange text.
//   - An error if the file cannot be read or decoded.
func ReadInput(path, encodingName string) (string, error) {
	dec, err := Decoder(encodingName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}
	text, err := dec.Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s input: %w", encodingName, err)
	}
	return string(text), nil
}
