package extract

import (
	"errors"
	"fmt"
	"testing"
)

func TestMeaningfulChars(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   \n\t  ", 0},
		{"abc 123", 6},
		{"résumé", 6},
		{"... --- !!!", 0},
		{"Go, 10 years", 9},
	}
	for _, tt := range tests {
		if got := meaningfulChars(tt.in); got != tt.want {
			t.Errorf("meaningfulChars(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTextMissingFile(t *testing.T) {
	p := &PDF{}
	if _, err := p.Text("/nonexistent/cv.pdf"); err == nil {
		t.Fatal("Text on missing file returned nil error")
	}
}

func TestInsufficientTextIsSentinel(t *testing.T) {
	// Callers branch on the sentinel to pick the scan_failed rejection path,
	// so the wrap must survive errors.Is.
	err := fmt.Errorf("12 meaningful characters, need 100: %w", ErrInsufficientText)
	if !errors.Is(err, ErrInsufficientText) {
		t.Error("wrapped ErrInsufficientText not detected by errors.Is")
	}
}
