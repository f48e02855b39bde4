// Package jobstore keeps batch job status in a Redis hash so other
// processes can follow a running batch.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cwbudde/algo-reamp/batch"
)

// DefaultKey is the hash holding one field per job ID.
const DefaultKey = "REAMP_JOBS"

// ErrNotFound is returned by Get for unknown job IDs.
var ErrNotFound = errors.New("jobstore: job not found")

type record struct {
	Status  batch.Status `json:"status"`
	Detail  string       `json:"detail,omitempty"`
	Updated time.Time    `json:"updated"`
}

func (r record) toBatch() batch.Record {
	return batch.Record{Status: r.Status, Detail: r.Detail, Updated: r.Updated}
}

// Store is a batch.StatusStore backed by Redis.
type Store struct {
	rdb redis.Cmdable
	key string
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// New wraps an existing client.
func New(rdb redis.Cmdable, opts ...Option) *Store {
	s := &Store{rdb: rdb, key: DefaultKey, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Dial connects to addr and returns the store with its client. The caller
// closes the client.
func Dial(ctx context.Context, addr, password string, opts ...Option) (*Store, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("jobstore: ping %s: %w", addr, err)
	}

	return New(rdb, opts...), rdb, nil
}

// Key returns the hash key.
func (s *Store) Key() string {
	return s.key
}

// SetStatus stores the job's latest status.
func (s *Store) SetStatus(ctx context.Context, jobID string, status batch.Status, detail string) error {
	b, err := json.Marshal(record{Status: status, Detail: detail, Updated: s.now()})
	if err != nil {
		return fmt.Errorf("jobstore: marshal %s: %w", jobID, err)
	}

	if err := s.rdb.HSet(ctx, s.key, jobID, string(b)).Err(); err != nil {
		return fmt.Errorf("jobstore: hset %s %s: %w", s.key, jobID, err)
	}

	return nil
}

// Get returns the stored record for jobID.
func (s *Store) Get(ctx context.Context, jobID string) (batch.Record, error) {
	v, err := s.rdb.HGet(ctx, s.key, jobID).Result()
	if err == redis.Nil {
		return batch.Record{}, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	} else if err != nil {
		return batch.Record{}, fmt.Errorf("jobstore: hget %s %s: %w", s.key, jobID, err)
	}

	return decode(jobID, v)
}

// All returns every stored record keyed by job ID.
func (s *Store) All(ctx context.Context) (map[string]batch.Record, error) {
	objs, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("jobstore: hgetall %s: %w", s.key, err)
	}

	out := make(map[string]batch.Record, len(objs))

	for id, v := range objs {
		r, err := decode(id, v)
		if err != nil {
			return nil, err
		}

		out[id] = r
	}

	return out, nil
}

// Clear removes the hash.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("jobstore: del %s: %w", s.key, err)
	}

	return nil
}

func decode(jobID, v string) (batch.Record, error) {
	var r record
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return batch.Record{}, fmt.Errorf("jobstore: decode %s: %w", jobID, err)
	}

	return r.toBatch(), nil
}
