package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/non4ik-sdk/palettron/internal/colour"
)

var _ Store = (*RedisStore)(nil)

// RedisStore provides a Redis-backed implementation of the Store interface.
// Palettes are stored as JSON under "<prefix>:session:<id>" and expire after
// the configured TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live for pending palettes.
// Default is DefaultTTL. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys.
// Default is "palettron".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed session store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(30 * time.Minute),
//	)
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    DefaultTTL,
		prefix: "palettron",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, id string, p *colour.Palette) error {
	if err := validate(id, p); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal palette: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Take implements Store. GETDEL makes the read and the delete atomic, so two
// concurrent callers can never both consume the same palette.
func (s *RedisStore) Take(ctx context.Context, id string) (*colour.Palette, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return s.read(s.client.GetDel(ctx, s.key(id)))
}

// Peek implements Store.
func (s *RedisStore) Peek(ctx context.Context, id string) (*colour.Palette, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return s.read(s.client.Get(ctx, s.key(id)))
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Ping checks the connection to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) read(cmd *redis.StringCmd) (*colour.Palette, error) {
	data, err := cmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis %s failed: %w", cmd.Name(), err)
	}

	p, err := colour.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal palette: %w", err)
	}
	return p, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":session:" + id
}
