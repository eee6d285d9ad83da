// Package ledger is the frequency ledger: one record per normalized question,
// holding how many times it was answered and the latest answer text.
//
// The ledger is the source of truth for answers. The vector index only stores
// references (normalized question text) into it.
package ledger

import (
	"context"
	"strings"
	"time"
)

// Record is a single ledger entry.
type Record struct {
	// Key is the normalized question and the record's identity.
	Key string `json:"key"`

	// Raw is the question as it was last asked, before normalization.
	Raw string `json:"raw,omitempty"`

	// HitCount counts completed miss-then-answer cycles.
	HitCount int64 `json:"hit_count"`

	// Answer is the most recently recorded response.
	Answer string `json:"answer"`

	// Language is the ISO-639-1 code the answer was given in.
	Language string `json:"language,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger stores records keyed by normalized question.
type Ledger interface {
	// Get returns the record for key, or nil and no error when absent.
	Get(ctx context.Context, key string) (*Record, error)

	// Increment atomically creates the record with HitCount 1 or adds one to
	// it, replacing its answer. It returns the record after the write.
	Increment(ctx context.Context, key, raw, answer, lang string) (*Record, error)

	// Put writes rec as given, replacing any existing record.
	Put(ctx context.Context, rec Record) error

	// List returns the records whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]*Record, error)

	// Close releases backend resources.
	Close() error
}

// Normalize is the canonical question key: lowercased with surrounding
// whitespace removed. Normalize(Normalize(q)) == Normalize(q).
func Normalize(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
