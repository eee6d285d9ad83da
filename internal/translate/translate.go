// Package translate detects the language of user text and translates it to
// and from the pivot language the language model works in.
package translate

import (
	"context"
	"strings"
)

// Translator is the interface for language detection and translation.
type Translator interface {
	// Name returns the backend identifier.
	Name() string

	// Detect returns the ISO-639-1 code of text's language.
	Detect(ctx context.Context, text string) (string, error)

	// Translate converts text from src to dst (ISO-639-1 codes).
	Translate(ctx context.Context, text, src, dst string) (string, error)
}

// None treats every text as already in the pivot language.
type None struct {
	Pivot string
}

// Name returns the backend identifier.
func (n None) Name() string { return "none" }

// Detect always reports the pivot language.
func (n None) Detect(context.Context, string) (string, error) { return n.Pivot, nil }

// Translate returns text unchanged.
func (n None) Translate(_ context.Context, text, _, _ string) (string, error) { return text, nil }

// SameLanguage reports whether two language tags name the same base
// language, ignoring case and region ("en", "EN-us").
func SameLanguage(a, b string) bool {
	return base(a) == base(b)
}

func base(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return tag
}
