// Package vectorindex is a flat nearest-neighbour index over unit vectors.
//
// Every entry is compared on lookup; the cache only promotes questions that
// were asked several times, so the index stays small enough that exact
// search beats any approximate structure.
package vectorindex

import (
	"fmt"
	"math"
	"sync"

	"github.com/nadzzz/confidant/internal/embedding"
)

// Entry pairs a ledger key with its embedding.
type Entry struct {
	Ref    string
	Vector []float32
}

// Index holds entries of a fixed dimension. Lookups take the read lock and
// may run concurrently; adds are exclusive.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []Entry
	refs    map[string]int
}

// New returns an empty index for vectors of length dim.
func New(dim int) *Index {
	return &Index{dim: dim, refs: make(map[string]int)}
}

// Dimensions returns the vector length the index accepts.
func (x *Index) Dimensions() int { return x.dim }

// Add appends ref with vec. It returns false without error when ref is
// already present, so repeated promotion never grows the index.
func (x *Index) Add(ref string, vec []float32) (bool, error) {
	if ref == "" {
		return false, fmt.Errorf("adding entry: empty ref")
	}
	if len(vec) != x.dim {
		return false, fmt.Errorf("adding entry %q: vector has %d dimensions, index has %d", ref, len(vec), x.dim)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.refs[ref]; ok {
		return false, nil
	}
	v := make([]float32, len(vec))
	copy(v, vec)
	x.refs[ref] = len(x.entries)
	x.entries = append(x.entries, Entry{Ref: ref, Vector: v})
	return true, nil
}

// Nearest returns the ref closest to vec by squared L2 distance.
// ok is false when the index is empty.
func (x *Index) Nearest(vec []float32) (ref string, dist float64, ok bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 || len(vec) != x.dim {
		return "", 0, false
	}
	best := math.Inf(1)
	for _, e := range x.entries {
		if d := embedding.SquaredL2(vec, e.Vector); d < best {
			best = d
			ref = e.Ref
		}
	}
	return ref, best, true
}

// Contains reports whether ref has an entry.
func (x *Index) Contains(ref string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.refs[ref]
	return ok
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Entries returns a copy of the entries in insertion order.
func (x *Index) Entries() []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}
