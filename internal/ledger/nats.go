package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/nadzzz/confidant/internal/embedding"
	"github.com/nadzzz/confidant/internal/retry"
)

// NATS is a ledger stored in a JetStream key-value bucket.
//
// Bucket keys are content hashes of the normalized question, since KV keys
// cannot hold arbitrary text. Increments are compare-and-swap on the entry
// revision and retried on conflict.
type NATS struct {
	kv    jetstream.KeyValue
	conn  *nats.Conn
	retry retry.Config
}

// NewNATS connects to url and opens (or creates) bucket.
func NewNATS(ctx context.Context, url, bucket string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("confidant-ledger"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "confidant frequency ledger",
			History:     1,
		})
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, bucket)
		}
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("opening kv bucket %s: %w", bucket, err)
	}

	l := NewNATSWithKV(kv)
	l.conn = nc
	return l, nil
}

// NewNATSWithKV wraps an already opened bucket. The caller owns its connection.
func NewNATSWithKV(kv jetstream.KeyValue) *NATS {
	return &NATS{kv: kv, retry: retry.Conflict()}
}

func bucketKey(key string) string {
	return embedding.ContentHash(key)
}

func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get implements Ledger.
func (n *NATS) Get(ctx context.Context, key string) (*Record, error) {
	entry, err := n.kv.Get(ctx, bucketKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger get %q: %w", key, err)
	}
	rec, err := decode(entry.Value())
	if err != nil {
		return nil, fmt.Errorf("ledger get %q: decoding: %w", key, err)
	}
	return rec, nil
}

// Increment implements Ledger.
func (n *NATS) Increment(ctx context.Context, key, raw, answer, lang string) (*Record, error) {
	bk := bucketKey(key)

	return retry.DoWithResult(ctx, n.retry, func() (*Record, error) {
		var rec Record
		var revision uint64

		entry, err := n.kv.Get(ctx, bk)
		switch {
		case errors.Is(err, jetstream.ErrKeyNotFound):
		case err != nil:
			return nil, fmt.Errorf("kv get failed during increment: %w", err)
		default:
			cur, err := decode(entry.Value())
			if err != nil {
				return nil, retry.NonRetryable(fmt.Errorf("decoding record %q: %w", key, err))
			}
			rec = *cur
			revision = entry.Revision()
		}

		rec.Key = key
		rec.Raw = raw
		rec.HitCount++
		rec.Answer = answer
		rec.Language = lang
		rec.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(rec)
		if err != nil {
			return nil, retry.NonRetryable(err)
		}

		if revision == 0 {
			_, err = n.kv.Create(ctx, bk, data)
		} else {
			_, err = n.kv.Update(ctx, bk, data, revision)
		}
		if err != nil {
			return nil, fmt.Errorf("ledger increment %q: %w", key, err)
		}
		return &rec, nil
	})
}

// Put implements Ledger.
func (n *NATS) Put(ctx context.Context, rec Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := n.kv.Put(ctx, bucketKey(rec.Key), data); err != nil {
		return fmt.Errorf("ledger put %q: %w", rec.Key, err)
	}
	return nil
}

// List implements Ledger. Bucket keys are hashes, so every record is read
// and filtered on its stored key.
func (n *NATS) List(ctx context.Context, prefix string) ([]*Record, error) {
	keys, err := n.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger list: %w", err)
	}

	var out []*Record
	for _, k := range keys {
		entry, err := n.kv.Get(ctx, k)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("ledger list: %w", err)
		}
		rec, err := decode(entry.Value())
		if err != nil {
			return nil, fmt.Errorf("ledger list: decoding %s: %w", k, err)
		}
		if strings.HasPrefix(rec.Key, prefix) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Close implements Ledger.
func (n *NATS) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
