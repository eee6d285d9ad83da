package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process ledger. Its contents are lost on restart.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record), now: time.Now}
}

// Get implements Ledger.
func (m *Memory) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Increment implements Ledger.
func (m *Memory) Increment(_ context.Context, key, raw, answer, lang string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[key]
	rec.Key = key
	rec.Raw = raw
	rec.HitCount++
	rec.Answer = answer
	rec.Language = lang
	rec.UpdatedAt = m.now()
	m.records[key] = rec

	return &rec, nil
}

// Put implements Ledger.
func (m *Memory) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = m.now()
	}
	m.records[rec.Key] = rec
	return nil
}

// List implements Ledger.
func (m *Memory) List(_ context.Context, prefix string) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Record, 0, len(m.records))
	for k, rec := range m.records {
		if strings.HasPrefix(k, prefix) {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close implements Ledger.
func (m *Memory) Close() error { return nil }
