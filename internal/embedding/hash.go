package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder produces lexical embeddings by feature hashing.
//
// Text is lowercased and split on non-alphanumeric runes; tokens shorter
// than two runes are dropped. Each token is hashed (FNV-1a) into one of
// Dimensions buckets with sublinear term-frequency weighting, and the
// result is L2 normalized. It keeps no corpus statistics, so the same text
// always maps to the same vector.
//
// It will not understand paraphrases the way a neural model does, but two
// phrasings that share most content words land close together.
type HashEmbedder struct {
	dimensions int
}

// HashConfig configures the hash embedder.
type HashConfig struct {
	// Dimensions is the output embedding dimension (default: 384).
	Dimensions int
}

// NewHashEmbedder creates a new feature-hashing embedder.
func NewHashEmbedder(cfg HashConfig) *HashEmbedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 384
	}
	return &HashEmbedder{dimensions: cfg.Dimensions}
}

// Generate creates embeddings for the given texts.
func (h *HashEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

// Dimensions returns the dimensionality of embeddings.
func (h *HashEmbedder) Dimensions() int { return h.dimensions }

// Model returns the model identifier.
func (h *HashEmbedder) Model() string { return fmt.Sprintf("hash-fnv1a-%d", h.dimensions) }

// Close is a no-op.
func (h *HashEmbedder) Close() error { return nil }

func (h *HashEmbedder) vector(text string) []float32 {
	tf := make(map[string]int)
	for _, tok := range tokenize(text) {
		tf[tok]++
	}

	vec := make([]float32, h.dimensions)
	for term, n := range tf {
		vec[h.bucket(term)] += float32(1 + math.Log(float64(n)))
	}
	return Normalize(vec)
}

func (h *HashEmbedder) bucket(term string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(term))
	return int(f.Sum32() % uint32(h.dimensions))
}

// tokenize splits text into lowercase alphanumeric tokens of at least two runes.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if tok := current.String(); len([]rune(tok)) >= 2 {
			tokens = append(tokens, tok)
		}
		current.Reset()
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}
