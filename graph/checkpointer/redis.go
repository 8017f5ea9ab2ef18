package checkpointer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fenwick-run/stepgraph/graph"
)

// Redis is a graph.Checkpointer backed by Redis, storing each thread's
// checkpoint chain as an append-only list so GetLatest/History stay O(1)/
// O(limit) without a secondary index.
type Redis[S any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures a Redis-backed checkpointer.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, default "stepgraph:"
	TTL      time.Duration // expiration per thread key, 0 disables expiry
}

// NewRedis creates a Redis-backed checkpointer from connection options.
func NewRedis[S any](opts RedisOptions) *Redis[S] {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "stepgraph:"
	}
	return &Redis[S]{client: client, prefix: prefix, ttl: opts.TTL}
}

// NewRedisWithClient wraps an existing client, so tests can point it at a
// miniredis instance instead of a live server.
func NewRedisWithClient[S any](client *redis.Client, prefix string, ttl time.Duration) *Redis[S] {
	if prefix == "" {
		prefix = "stepgraph:"
	}
	return &Redis[S]{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis[S]) threadKey(threadID string) string {
	return fmt.Sprintf("%sthread:%s", r.prefix, threadID)
}

// Close releases the underlying client.
func (r *Redis[S]) Close() error {
	return r.client.Close()
}

func (r *Redis[S]) Save(ctx context.Context, cp graph.Checkpoint[S]) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	key := r.threadKey(cp.ThreadID)
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint to redis: %w", err)
	}
	return nil
}

func (r *Redis[S]) GetLatest(ctx context.Context, threadID string) (graph.Checkpoint[S], error) {
	data, err := r.client.LIndex(ctx, r.threadKey(threadID), -1).Bytes()
	if err == redis.Nil {
		var zero graph.Checkpoint[S]
		return zero, ErrNotFound
	}
	if err != nil {
		var zero graph.Checkpoint[S]
		return zero, fmt.Errorf("load latest checkpoint: %w", err)
	}
	var cp graph.Checkpoint[S]
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

func (r *Redis[S]) History(ctx context.Context, threadID string, limit int) ([]graph.Checkpoint[S], error) {
	key := r.threadKey(threadID)
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := r.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load thread history: %w", err)
	}
	out := make([]graph.Checkpoint[S], 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var cp graph.Checkpoint[S]
		if err := json.Unmarshal([]byte(raw[i]), &cp); err != nil {
			return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
		}
		out = append(out, cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *Redis[S]) Delete(ctx context.Context, threadID string) error {
	if err := r.client.Del(ctx, r.threadKey(threadID)).Err(); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

var _ graph.Checkpointer[struct{}] = (*Redis[struct{}])(nil)
