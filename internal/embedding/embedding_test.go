package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedder_Generate(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  int
	}{
		{name: "empty input", texts: []string{}, want: 0},
		{name: "single text", texts: []string{"hello world"}, want: 1},
		{name: "multiple texts", texts: []string{"hello world", "goodbye world", "hello goodbye"}, want: 3},
		{name: "empty text", texts: []string{""}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewHashEmbedder(HashConfig{})
			vecs, err := e.Generate(context.Background(), tt.texts)
			require.NoError(t, err)
			require.Len(t, vecs, tt.want)
			for _, v := range vecs {
				assert.Len(t, v, e.Dimensions())
			}
		})
	}
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(HashConfig{Dimensions: 128})
	a, err := e.Generate(context.Background(), []string{"What is anxiety?"})
	require.NoError(t, err)
	b, err := e.Generate(context.Background(), []string{"what is ANXIETY"})
	require.NoError(t, err)

	assert.Equal(t, a[0], b[0])
	assert.InDelta(t, 1.0, norm(a[0]), 1e-5)
}

func TestHashEmbedder_Similarity(t *testing.T) {
	e := NewHashEmbedder(HashConfig{})
	vecs, err := e.Generate(context.Background(), []string{
		"what is anxiety",
		"what's anxiety",
		"how do I bake sourdough bread",
	})
	require.NoError(t, err)

	near := SquaredL2(vecs[0], vecs[1])
	far := SquaredL2(vecs[0], vecs[2])

	assert.Less(t, near, 1.0)
	assert.Greater(t, far, 1.0)
}

func TestHashEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashEmbedder(HashConfig{}).Generate(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"what", "anxiety"}, tokenize("What's anxiety?"))
	assert.Equal(t, []string{"ça", "va", "bien"}, tokenize("Ça va bien"))
	assert.Empty(t, tokenize("  ?! "))
}

func TestNormalizeAndDistance(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)

	assert.InDelta(t, 2.0, SquaredL2([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.True(t, math.IsInf(SquaredL2([]float32{1}, []float32{1, 0}), 1))
}

func TestOne(t *testing.T) {
	v, err := One(context.Background(), NewHashEmbedder(HashConfig{Dimensions: 16}), "hello there")
	require.NoError(t, err)
	assert.Len(t, v, 16)
	assert.InDelta(t, 1.0, norm(v), 1e-5)
}

type countingEmbedder struct {
	*HashEmbedder
	calls atomic.Int32
	texts atomic.Int32
}

func (c *countingEmbedder) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int32(len(texts)))
	return c.HashEmbedder.Generate(ctx, texts)
}

func TestMemo(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(HashConfig{Dimensions: 32})}
	m, err := NewMemo(inner, 8)
	require.NoError(t, err)

	first, err := m.Generate(context.Background(), []string{"a question", "another one"})
	require.NoError(t, err)
	second, err := m.Generate(context.Background(), []string{"another one", "a third"})
	require.NoError(t, err)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, int32(3), inner.texts.Load())
	assert.Equal(t, 32, m.Dimensions())
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mini", req.Model)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[len(req.Input)-1-i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(i), 1, 0},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "mini"})
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "mini"})
	require.NoError(t, err)

	vecs, err := e.Generate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0, 1, 0}, vecs[0])
	assert.Equal(t, []float32{1, 1, 0}, vecs[1])
	assert.Equal(t, 3, e.Dimensions())
}

func TestNewOpenAIEmbedderValidation(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewOpenAIEmbedder(OpenAIConfig{BaseURL: "http://x"})
	assert.Error(t, err)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
