// ABOUTME: Tests for whisper engine construction
// ABOUTME: Tests option handling and the unavailable build
package whisper

import "testing"

func TestWithLanguage(t *testing.T) {
	lang := DefaultLanguage
	WithLanguage("de")(&lang)
	if lang != "de" {
		t.Errorf("expected de, got %s", lang)
	}
	WithLanguage("")(&lang)
	if lang != "de" {
		t.Errorf("expected empty option to keep de, got %s", lang)
	}
}

func TestNewWithoutModel(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error without a model")
	}
}
