// Package extract pulls plain text out of resume PDFs.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// ErrInsufficientText is returned when a PDF yields too few meaningful
// characters to classify, typically a scanned or image-only document.
// This failure is deterministic and must not be retried.
var ErrInsufficientText = errors.New("insufficient extractable text")

// DefaultMinChars is the meaningful-character threshold below which a
// document is treated as unextractable.
const DefaultMinChars = 100

// Extractor produces plain text from a document on disk.
type Extractor interface {
	Text(path string) (string, error)
}

// PDF extracts text with a pure-Go PDF parser. The zero value uses
// DefaultMinChars.
type PDF struct {
	// MinChars overrides the meaningful-character threshold when > 0.
	MinChars int
}

// Text returns the plain text of the PDF at path. It returns a wrapped
// ErrInsufficientText when the document does not carry enough meaningful
// characters (letters and digits) to be worth classifying.
func (p *PDF) Text(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		// Unreadable content streams behave like a scan: nothing to classify.
		return "", fmt.Errorf("extracting text: %w", ErrInsufficientText)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}

	text := buf.String()
	min := p.MinChars
	if min <= 0 {
		min = DefaultMinChars
	}
	if meaningfulChars(text) < min {
		return "", fmt.Errorf("%d meaningful characters, need %d: %w", meaningfulChars(text), min, ErrInsufficientText)
	}
	return text, nil
}

// meaningfulChars counts letters and digits, ignoring whitespace and
// punctuation noise that even empty scans tend to produce.
func meaningfulChars(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
