package vectorindex

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/confidant/internal/store"
)

const snapshotContentType = "application/octet-stream"

// Persister loads and saves an index snapshot under a single blob key.
type Persister struct {
	blob store.Blob
	key  string
}

// NewPersister returns a Persister writing to key in blob.
func NewPersister(blob store.Blob, key string) *Persister {
	return &Persister{blob: blob, key: key}
}

// Key returns the blob key of the snapshot.
func (p *Persister) Key() string { return p.key }

// Load returns the stored index, or an empty index of dimension dim when no
// snapshot exists yet. A stored snapshot of a different dimension is an error:
// it was built by another embedder and its distances are meaningless.
func (p *Persister) Load(ctx context.Context, dim int) (*Index, error) {
	ok, err := p.blob.Exists(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("checking index snapshot %s: %w", p.key, err)
	}
	if !ok {
		slog.Info("no index snapshot found, starting empty", "key", p.key, "dimensions", dim)
		return New(dim), nil
	}

	data, err := p.blob.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("reading index snapshot %s: %w", p.key, err)
	}
	x, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding index snapshot %s: %w", p.key, err)
	}
	if x.Dimensions() != dim {
		return nil, fmt.Errorf("index snapshot %s has %d dimensions, embedder produces %d", p.key, x.Dimensions(), dim)
	}
	slog.Info("index snapshot loaded", "key", p.key, "entries", x.Len(), "dimensions", dim)
	return x, nil
}

// Save writes a snapshot of x, replacing the previous one.
func (p *Persister) Save(ctx context.Context, x *Index) error {
	data, err := Marshal(x)
	if err != nil {
		return fmt.Errorf("encoding index snapshot: %w", err)
	}
	if err := p.blob.Put(ctx, p.key, data, snapshotContentType); err != nil {
		return fmt.Errorf("writing index snapshot %s: %w", p.key, err)
	}
	return nil
}
