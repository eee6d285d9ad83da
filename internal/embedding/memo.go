package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memo wraps an Embedder with an in-process LRU keyed by content hash.
//
// A cache miss embeds the query once for lookup and again when the answer is
// recorded; the memo makes the second call free.
type Memo struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewMemo wraps next with an LRU holding up to size vectors.
func NewMemo(next Embedder, size int) (*Memo, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding memo: %w", err)
	}
	return &Memo{next: next, cache: c}, nil
}

// Generate serves memoized vectors and forwards the rest in one batch.
func (m *Memo) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missText []string

	for i, text := range texts {
		if v, ok := m.cache.Get(ContentHash(text)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := m.next.Generate(ctx, missText)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missText) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d texts", m.next.Model(), len(vecs), len(missText))
	}
	for j, v := range vecs {
		out[missIdx[j]] = v
		m.cache.Add(ContentHash(missText[j]), v)
	}
	return out, nil
}

// Dimensions returns the wrapped embedder's dimensionality.
func (m *Memo) Dimensions() int { return m.next.Dimensions() }

// Model returns the wrapped embedder's model.
func (m *Memo) Model() string { return m.next.Model() }

// Close closes the wrapped embedder.
func (m *Memo) Close() error { return m.next.Close() }
