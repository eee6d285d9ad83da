// Package embedding turns text into fixed-length vectors for similarity search.
//
// The semantic cache only depends on the Embedder interface. Two providers
// ship with confidant: a local feature-hashing embedder that needs no model
// server, and an OpenAI-compatible HTTP embedder (TEI, LocalAI, OpenAI).
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Generate creates embeddings for the given texts.
	// For single text, pass a slice with one element.
	Generate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings produced by this embedder.
	Dimensions() int

	// Model returns the model identifier used by this embedder.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// One embeds a single text and returns a unit-length copy of its vector.
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Generate(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder %s returned %d vectors for 1 text", e.Model(), len(vecs))
	}
	if len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder %s returned an empty vector", e.Model())
	}
	return Normalize(vecs[0]), nil
}

// ContentHash generates a SHA-256 hash of text content for use as a cache key.
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
