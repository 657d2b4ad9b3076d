package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

var ErrUnknownEncoding = errors.New("unknown encoding")

const DefaultEncoding = "latin1"

// LookupEncoding resolves a WHATWG encoding label such as "latin1",
// "windows-1252" or "utf-8".
func LookupEncoding(name string) (encoding.Encoding, error) {
	name = EncodingName(name)
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// EncodingName normalizes an encoding label, defaulting to DefaultEncoding
func EncodingName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultEncoding
	}
	return name
}

type decodedFile struct {
	io.Reader
	file *os.File
}

func (d *decodedFile) Close() error {
	return d.file.Close()
}

// OpenDecoded opens path and transcodes its content to UTF-8. A UTF-8 byte
// order mark is dropped when the source is UTF-8.
func OpenDecoded(path string, enc encoding.Encoding) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	if enc == nil || enc == unicode.UTF8 {
		return &decodedFile{Reader: unicode.UTF8BOM.NewDecoder().Reader(file), file: file}, nil
	}
	return &decodedFile{Reader: enc.NewDecoder().Reader(file), file: file}, nil
}
