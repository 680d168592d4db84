// Package location provides the user's current position to the geofence
// check service: fixes reported by the host are kept in a FixStore and
// served while fresh.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Veraticus/whereabouts/internal/model"
)

// ErrNoFix is returned by a FixStore that has never seen a fix.
var ErrNoFix = errors.New("no fix recorded")

// DefaultRedisKey is where RedisFixStore keeps the latest fix.
const DefaultRedisKey = "whereabouts:fix:latest"

const maxSaveAttempts = 5

// FixStore keeps the most recent fix reported by the host.
type FixStore interface {
	Save(ctx context.Context, fix model.Fix) error
	Latest(ctx context.Context) (*model.Fix, error)
}

// MemoryFixStore is a process-local FixStore.
type MemoryFixStore struct {
	latest *model.Fix
	mu     sync.RWMutex
}

// NewMemoryFixStore creates an empty MemoryFixStore.
func NewMemoryFixStore() *MemoryFixStore {
	return &MemoryFixStore{}
}

// Save replaces the stored fix unless it is older than the one held.
func (s *MemoryFixStore) Save(_ context.Context, fix model.Fix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil && fix.RecordedAt.Before(s.latest.RecordedAt) {
		return nil
	}
	s.latest = &fix
	return nil
}

// Latest returns a copy of the stored fix.
func (s *MemoryFixStore) Latest(_ context.Context) (*model.Fix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoFix
	}
	fix := *s.latest
	return &fix, nil
}

// RedisFixStore shares the latest fix between processes through Redis.
type RedisFixStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisFixStore creates a RedisFixStore. Entries expire after ttl; zero
// keeps them until overwritten.
func NewRedisFixStore(client *redis.Client, ttl time.Duration) *RedisFixStore {
	return &RedisFixStore{client: client, key: DefaultRedisKey, ttl: ttl}
}

// NewRedisClient creates a Redis client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Save stores fix as JSON unless the stored fix is newer. The comparison runs
// under WATCH so concurrent writers cannot regress the key.
func (s *RedisFixStore) Save(ctx context.Context, fix model.Fix) error {
	data, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("failed to encode fix: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, s.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var held model.Fix
			// An undecodable value is replaced.
			if json.Unmarshal(current, &held) == nil && fix.RecordedAt.Before(held.RecordedAt) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to store fix: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to store fix after %d attempts: %w", maxSaveAttempts, err)
}

// Latest loads the stored fix.
func (s *RedisFixStore) Latest(ctx context.Context) (*model.Fix, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoFix
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load fix: %w", err)
	}

	var fix model.Fix
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil, fmt.Errorf("failed to decode fix: %w", err)
	}
	return &fix, nil
}
