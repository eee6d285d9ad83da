package vectorindex

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/confidant/internal/store"
)

func unit(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestIndex_AddIsIdempotent(t *testing.T) {
	x := New(4)

	added, err := x.Add("what is anxiety", unit(4, 0))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = x.Add("what is anxiety", unit(4, 1))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, x.Len())
	assert.True(t, x.Contains("what is anxiety"))
}

func TestIndex_AddRejectsBadInput(t *testing.T) {
	x := New(4)
	_, err := x.Add("q", unit(3, 0))
	assert.Error(t, err)
	_, err = x.Add("", unit(4, 0))
	assert.Error(t, err)
	assert.Equal(t, 0, x.Len())
}

func TestIndex_Nearest(t *testing.T) {
	x := New(3)

	_, _, ok := x.Nearest(unit(3, 0))
	assert.False(t, ok, "empty index has no nearest entry")

	_, err := x.Add("a", unit(3, 0))
	require.NoError(t, err)
	_, err = x.Add("b", unit(3, 1))
	require.NoError(t, err)

	ref, dist, ok := x.Nearest([]float32{0.1, 0.99, 0})
	require.True(t, ok)
	assert.Equal(t, "b", ref)
	assert.Less(t, dist, 0.1)

	ref, dist, ok = x.Nearest(unit(3, 2))
	require.True(t, ok)
	assert.InDelta(t, 2.0, dist, 1e-9)
	assert.Contains(t, []string{"a", "b"}, ref)
}

func TestIndex_ConcurrentAddSameRef(t *testing.T) {
	x := New(2)
	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := x.Add("same", unit(2, 0))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				added++
				mu.Unlock()
			}
			x.Nearest(unit(2, 1))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, x.Len())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	x := New(3)
	_, err := x.Add("what is anxiety", []float32{0.6, 0.8, 0})
	require.NoError(t, err)
	_, err = x.Add("how do i sleep better", []float32{0, 0, 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, x))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Dimensions())
	assert.Equal(t, x.Entries(), got.Entries())
}

func TestSnapshot_RejectsGarbage(t *testing.T) {
	tests := map[string][]byte{
		"empty":     nil,
		"bad magic": []byte("NOPE\x01\x00"),
		"truncated": []byte("CFVX\x01\x00\x03\x00\x00\x00\x01\x00\x00\x00"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrBadSnapshot)
		})
	}
}

func TestPersister_LoadMissingIsEmpty(t *testing.T) {
	blob, err := store.NewFile(t.TempDir())
	require.NoError(t, err)

	p := NewPersister(blob, "faiss_index.index")
	x, err := p.Load(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, 0, x.Len())
	assert.Equal(t, 8, x.Dimensions())
}

func TestPersister_SaveLoad(t *testing.T) {
	ctx := context.Background()
	blob, err := store.NewFile(t.TempDir())
	require.NoError(t, err)
	p := NewPersister(blob, "faiss_index.index")

	x := New(2)
	_, err = x.Add("q", unit(2, 1))
	require.NoError(t, err)
	require.NoError(t, p.Save(ctx, x))

	got, err := p.Load(ctx, 2)
	require.NoError(t, err)
	assert.True(t, got.Contains("q"))

	_, err = p.Load(ctx, 3)
	assert.Error(t, err, "dimension mismatch must not load silently")
}
