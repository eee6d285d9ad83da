// Package semcache is the semantic cache: an answer store keyed by question
// meaning rather than exact text.
//
// Every answered question is counted in the ledger. Once a question has been
// answered more than PromotionThreshold times its embedding is added to the
// vector index, and from then on any sufficiently similar question is served
// the ledger's latest answer without calling the language model.
package semcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadzzz/confidant/internal/embedding"
	"github.com/nadzzz/confidant/internal/errs"
	"github.com/nadzzz/confidant/internal/ledger"
	"github.com/nadzzz/confidant/internal/metrics"
	"github.com/nadzzz/confidant/internal/vectorindex"
)

// Config tunes the cache.
type Config struct {
	// SimilarityThreshold is the largest squared L2 distance between unit
	// vectors that still counts as a hit.
	SimilarityThreshold float64

	// PromotionThreshold is the hit count a record must exceed before its
	// question is indexed.
	PromotionThreshold int64

	// FlushInterval is how often Run retries a failed snapshot write.
	FlushInterval time.Duration
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 1.0,
		PromotionThreshold:  3,
		FlushInterval:       time.Minute,
	}
}

// Snapshotter persists the index.
type Snapshotter interface {
	Save(ctx context.Context, x *vectorindex.Index) error
}

// Result is the outcome of a lookup.
type Result struct {
	Found    bool
	Answer   string
	Record   *ledger.Record
	Distance float64
}

// Stats describes the cache's current state.
type Stats struct {
	Entries int  `json:"entries"`
	Dirty   bool `json:"dirty"`
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg      Config
	embedder embedding.Embedder
	ledger   ledger.Ledger
	index    *vectorindex.Index
	saver    Snapshotter
	metrics  *metrics.Metrics

	keys   *keyedMutex
	saveMu sync.Mutex
	dirty  atomic.Bool
}

// New assembles a cache over an already loaded index.
func New(cfg Config, emb embedding.Embedder, led ledger.Ledger, idx *vectorindex.Index, saver Snapshotter, m *metrics.Metrics) (*Cache, error) {
	if emb == nil || led == nil || idx == nil || saver == nil {
		return nil, errors.New("semcache: embedder, ledger, index and snapshotter are required")
	}
	if cfg.SimilarityThreshold <= 0 {
		return nil, fmt.Errorf("semcache: similarity threshold must be positive, got %v", cfg.SimilarityThreshold)
	}
	if cfg.PromotionThreshold < 0 {
		return nil, fmt.Errorf("semcache: promotion threshold must not be negative, got %d", cfg.PromotionThreshold)
	}
	if emb.Dimensions() != idx.Dimensions() {
		return nil, fmt.Errorf("semcache: embedder produces %d dimensions, index holds %d", emb.Dimensions(), idx.Dimensions())
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Minute
	}

	m.IndexSize(idx.Len())
	return &Cache{
		cfg:      cfg,
		embedder: emb,
		ledger:   led,
		index:    idx,
		saver:    saver,
		metrics:  m,
		keys:     newKeyedMutex(),
	}, nil
}

// Lookup finds a cached answer for query. Only an embedding failure is
// returned as an error; every other problem is a miss.
func (c *Cache) Lookup(ctx context.Context, query string) (Result, error) {
	key := ledger.Normalize(query)
	if key == "" || c.index.Len() == 0 {
		c.metrics.Lookup(metrics.LookupMiss)
		return Result{}, nil
	}

	vec, err := c.embed(ctx, key)
	if err != nil {
		return Result{}, errs.New(errs.EmbeddingFailure, "cache lookup", err)
	}
	if isZero(vec) {
		c.metrics.Lookup(metrics.LookupMiss)
		return Result{}, nil
	}

	ref, dist, ok := c.index.Nearest(vec)
	if !ok || dist > c.cfg.SimilarityThreshold {
		slog.Debug("cache miss", "query", key, "distance", dist)
		c.metrics.Lookup(metrics.LookupMiss)
		return Result{Distance: dist}, nil
	}

	rec, err := c.ledger.Get(ctx, ref)
	if err != nil {
		slog.Warn("ledger read failed during lookup, treating as miss", "ref", ref, "error", err)
		c.metrics.Lookup(metrics.LookupMiss)
		c.metrics.Degraded("ledger")
		return Result{Distance: dist}, nil
	}
	if rec == nil {
		slog.Warn("index entry has no ledger record", "ref", ref, "code", errs.CacheDrift)
		c.metrics.Lookup(metrics.LookupDrift)
		return Result{Distance: dist}, nil
	}

	slog.Info("cache hit", "query", key, "matched", ref, "distance", dist)
	c.metrics.Lookup(metrics.LookupHit)
	return Result{Found: true, Answer: rec.Answer, Record: rec, Distance: dist}, nil
}

// Record counts one answered occurrence of query and stores answer as its
// latest response. When the count passes the promotion threshold the
// question is indexed. A failed snapshot write is logged and retried later,
// never returned.
func (c *Cache) Record(ctx context.Context, query, answer, lang string) error {
	key := ledger.Normalize(query)
	if key == "" {
		return errs.Newf(errs.InvalidRequest, "cache record", "empty query")
	}

	unlock := c.keys.Lock(key)
	defer unlock()

	rec, err := c.ledger.Increment(ctx, key, query, answer, lang)
	if err != nil {
		c.metrics.PersistFailed("ledger")
		return errs.New(errs.PersistenceFailure, "cache record", err)
	}
	c.metrics.LedgerIncremented()
	slog.Debug("ledger incremented", "query", key, "hit_count", rec.HitCount)

	if rec.HitCount <= c.cfg.PromotionThreshold {
		return nil
	}
	return c.promote(ctx, key)
}

// Seed stores a curated answer for query and indexes it immediately. The
// record's hit count is raised to at least PromotionThreshold+2 so it reads
// as a frequent question.
func (c *Cache) Seed(ctx context.Context, query, answer, lang string) (*ledger.Record, error) {
	key := ledger.Normalize(query)
	if key == "" || answer == "" {
		return nil, errs.Newf(errs.InvalidRequest, "cache seed", "question and response are required")
	}

	unlock := c.keys.Lock(key)
	defer unlock()

	existing, err := c.ledger.Get(ctx, key)
	if err != nil {
		return nil, errs.New(errs.PersistenceFailure, "cache seed", err)
	}
	count := c.cfg.PromotionThreshold + 2
	if existing != nil && existing.HitCount > count {
		count = existing.HitCount
	}

	rec := ledger.Record{
		Key:       key,
		Raw:       query,
		HitCount:  count,
		Answer:    answer,
		Language:  lang,
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.ledger.Put(ctx, rec); err != nil {
		c.metrics.PersistFailed("ledger")
		return nil, errs.New(errs.PersistenceFailure, "cache seed", err)
	}
	if err := c.promote(ctx, key); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Frequent lists ledger records whose normalized question starts with prefix.
func (c *Cache) Frequent(ctx context.Context, prefix string) ([]*ledger.Record, error) {
	recs, err := c.ledger.List(ctx, ledger.Normalize(prefix))
	if err != nil {
		return nil, errs.New(errs.PersistenceFailure, "cache frequent", err)
	}
	return recs, nil
}

// Indexed reports whether the normalized form of query is in the index.
func (c *Cache) Indexed(query string) bool {
	return c.index.Contains(ledger.Normalize(query))
}

// Reconcile indexes every ledger record that passed the promotion threshold
// but never made it into the index, e.g. after a crash between the ledger
// write and the snapshot.
func (c *Cache) Reconcile(ctx context.Context) (int, error) {
	recs, err := c.ledger.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("listing ledger: %w", err)
	}
	promoted := 0
	for _, rec := range recs {
		if rec.HitCount <= c.cfg.PromotionThreshold || c.index.Contains(rec.Key) {
			continue
		}
		unlock := c.keys.Lock(rec.Key)
		added, err := c.add(ctx, rec.Key)
		unlock()
		if err != nil {
			return promoted, err
		}
		if added {
			promoted++
		}
	}
	if promoted > 0 {
		slog.Info("reconciled index with ledger", "promoted", promoted)
		c.persist(ctx)
	}
	return promoted, nil
}

// Flush writes the index snapshot if it has unsaved entries.
func (c *Cache) Flush(ctx context.Context) error {
	return c.save(ctx)
}

// Run retries failed snapshot writes every FlushInterval until ctx is done.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.save(ctx); err != nil {
				slog.Warn("periodic index flush failed", "error", err)
			}
		}
	}
}

// Close performs a final flush.
func (c *Cache) Close(ctx context.Context) error {
	if err := c.save(ctx); err != nil {
		return fmt.Errorf("final index flush: %w", err)
	}
	return nil
}

// Stats returns the current index size and whether a snapshot is pending.
func (c *Cache) Stats() Stats {
	return Stats{Entries: c.index.Len(), Dirty: c.dirty.Load()}
}

// promote adds key to the index and persists it. The caller holds key's lock.
func (c *Cache) promote(ctx context.Context, key string) error {
	added, err := c.add(ctx, key)
	if err != nil || !added {
		return err
	}
	c.persist(ctx)
	return nil
}

func (c *Cache) add(ctx context.Context, key string) (bool, error) {
	if c.index.Contains(key) {
		return false, nil
	}
	vec, err := c.embed(ctx, key)
	if err != nil {
		return false, errs.New(errs.EmbeddingFailure, "cache promote", err)
	}
	if isZero(vec) {
		slog.Warn("question has no usable features, not indexing", "query", key)
		return false, nil
	}
	added, err := c.index.Add(key, vec)
	if err != nil {
		return false, fmt.Errorf("indexing %q: %w", key, err)
	}
	if added {
		c.dirty.Store(true)
		c.metrics.Promoted(c.index.Len())
		slog.Info("question promoted to cache", "query", key, "entries", c.index.Len())
	}
	return added, nil
}

// persist saves the snapshot, logging instead of failing. The entry stays
// in memory and the dirty flag makes the next flush retry.
func (c *Cache) persist(ctx context.Context) {
	if err := c.save(ctx); err != nil {
		slog.Warn("index snapshot write failed, will retry", "error", err, "code", errs.PersistenceFailure)
	}
}

func (c *Cache) save(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if !c.dirty.Swap(false) {
		return nil
	}
	if err := c.saver.Save(ctx, c.index); err != nil {
		c.dirty.Store(true)
		c.metrics.PersistFailed("index")
		return errs.New(errs.PersistenceFailure, "index flush", err)
	}
	return nil
}

func (c *Cache) embed(ctx context.Context, text string) ([]float32, error) {
	return embedding.One(ctx, c.embedder, text)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
