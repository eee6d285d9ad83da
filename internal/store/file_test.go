package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_PutGetExists(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	ok, err := f.Exists(ctx, "faiss_index.index")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.Get(ctx, "faiss_index.index")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.Put(ctx, "faiss_index.index", []byte("v1"), ""))
	require.NoError(t, f.Put(ctx, "faiss_index.index", []byte("v2"), ""))

	ok, err = f.Exists(ctx, "faiss_index.index")
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := f.Get(ctx, "faiss_index.index")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestFile_List(t *testing.T) {
	ctx := context.Background()
	f, err := NewFile(t.TempDir())
	require.NoError(t, err)

	for _, k := range []string{"audio/response/b.wav", "audio/response/a.wav", "faiss_index.index"} {
		require.NoError(t, f.Put(ctx, k, []byte(k), "audio/wav"))
	}

	keys, err := f.List(ctx, "audio/")
	require.NoError(t, err)
	assert.Equal(t, []string{"audio/response/a.wav", "audio/response/b.wav"}, keys)

	all, err := f.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFile_KeysStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	f, err := NewFile(root)
	require.NoError(t, err)

	require.NoError(t, f.Put(ctx, "../../escape.txt", []byte("x"), ""))
	keys, err := f.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"escape.txt"}, keys)

	assert.Error(t, f.Put(ctx, "dir/", []byte("x"), ""))
	assert.Error(t, f.Put(ctx, "", []byte("x"), ""))
}
