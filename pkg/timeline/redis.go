package timeline

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of redis.Cmdable used by RedisStore.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
}

var _ RedisClient = (*redis.Client)(nil)

// RedisStore writes each timeline to <prefix><id> and indexes the ids in the
// sorted set <prefix>index, scored by creation time in milliseconds. With a
// TTL, index entries older than the TTL are pruned on List.
type RedisStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default: "reactor:timeline:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(r *RedisStore) {
		r.prefix = prefix
	}
}

// WithTTL expires stored timelines after d. Zero keeps them forever.
func WithTTL(d time.Duration) RedisStoreOption {
	return func(r *RedisStore) {
		r.ttl = d
	}
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	r := &RedisStore{
		client: client,
		prefix: "reactor:timeline:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) indexKey() string {
	return r.prefix + "index"
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, t *Timeline) error {
	if r.closed.Load() {
		return ErrStoreClosed
	}
	data, err := encode(t)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key(t.ID), data, r.ttl).Err(); err != nil {
		return unavailable("redis", "SET", err)
	}
	score := float64(t.Created.UnixMilli())
	if err := r.client.ZAdd(ctx, r.indexKey(), redis.Z{Score: score, Member: t.ID}).Err(); err != nil {
		return unavailable("redis", "ZADD", err)
	}
	return nil
}

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context, id string) (*Timeline, error) {
	if r.closed.Load() {
		return nil, ErrStoreClosed
	}

	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, unavailable("redis", "GET", err)
	}
	return decode(data)
}

// List implements Store. Summaries carry the id and creation time.
func (r *RedisStore) List(ctx context.Context) ([]Summary, error) {
	if r.closed.Load() {
		return nil, ErrStoreClosed
	}

	if r.ttl > 0 {
		cutoff := time.Now().Add(-r.ttl).UnixMilli()
		upper := "(" + strconv.FormatInt(cutoff, 10)
		if err := r.client.ZRemRangeByScore(ctx, r.indexKey(), "-inf", upper).Err(); err != nil {
			return nil, unavailable("redis", "ZREMRANGEBYSCORE", err)
		}
	}

	members, err := r.client.ZRevRangeWithScores(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, unavailable("redis", "ZREVRANGE", err)
	}

	out := make([]Summary, 0, len(members))
	for _, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, Summary{
			ID:      id,
			Created: time.UnixMilli(int64(m.Score)),
		})
	}
	sortNewestFirst(out)
	return out, nil
}

// Close implements Store. The client is owned by the caller and stays open.
func (r *RedisStore) Close() error {
	r.closed.Store(true)
	return nil
}
