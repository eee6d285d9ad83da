// Package store provides blob storage for the serialized vector index and
// synthesized audio replies.
//
// Keys are slash-separated paths (e.g. "faiss_index.index",
// "audioMessages/response/response_abc_1700000000.wav"). Backends must
// support get, put, an explicit existence check and listing by prefix.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("blob not found")

// Blob is a keyed object store.
type Blob interface {
	// Get returns the object's bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes the object, replacing any previous version.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns the keys that start with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
