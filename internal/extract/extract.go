// Package extract turns a raw novel file (.txt, .md, .html or .epub) into
// NFC-normalised plain text with blank-line separated paragraphs.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// ExtractionError reports a file that could not be read or parsed.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Supported reports whether Text can handle path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".html", ".htm", ".xhtml", ".epub":
		return true
	}
	return false
}

// Text extracts the plain text of the file at path.
func Text(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	var (
		text string
		err  error
	)
	if ext == ".epub" {
		text, err = fromEPUB(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		if err == nil {
			data = bytes.TrimPrefix(data, utf8BOM)
			switch ext {
			case ".txt":
				text = string(data)
			case ".md", ".markdown":
				text, err = fromMarkdown(data)
			default:
				text, err = fromHTML(bytes.NewReader(data))
			}
		}
	}
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	return norm.NFC.String(strings.TrimSpace(text)), nil
}
