package redis

import (
	"context"
	"fmt"

	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
	"mongodb-orm/internal/shared/logger"

	"github.com/redis/go-redis/v9"
)

// SequenceAllocator mints identities with INCR on one Redis key per model collection.
// INCR is atomic on the server, so values are distinct across processes sharing the instance.
type SequenceAllocator struct {
	client redis.Cmdable
	prefix string
	logger logger.Logger
}

// NewSequenceAllocator keys counters as "id_sequences:<collection>".
func NewSequenceAllocator(client redis.Cmdable, log logger.Logger) *SequenceAllocator {
	return &SequenceAllocator{
		client: client,
		prefix: model.SequenceCollection + ":",
		logger: logger.OrNop(log).WithComponent("redis_sequence_allocator"),
	}
}

var (
	_ repository.SequenceAllocator = (*SequenceAllocator)(nil)
	_ repository.SequenceSeeder    = (*SequenceAllocator)(nil)
)

// Key returns the Redis key holding the counter for key.
func (a *SequenceAllocator) Key(key string) string {
	return a.prefix + key
}

// Next increments and returns the counter for key. The first value is 1.
func (a *SequenceAllocator) Next(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("sequence key cannot be empty")
	}

	seq, err := a.client.Incr(ctx, a.Key(key)).Result()
	if err != nil {
		a.logger.WithFields(map[string]interface{}{
			"key":   a.Key(key),
			"error": err.Error(),
		}).Error("Failed to increment sequence in Redis")
		return 0, fmt.Errorf("failed to allocate id for %s: %w", key, err)
	}
	return seq, nil
}

// Seed raises the counter for key to at least floor, e.g. after switching
// backends on a collection whose ids came from id_sequences.
func (a *SequenceAllocator) Seed(ctx context.Context, key string, floor int64) error {
	current, err := a.client.Get(ctx, a.Key(key)).Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read sequence %s: %w", key, err)
	}
	if current >= floor {
		return nil
	}
	if err := a.client.Set(ctx, a.Key(key), floor, 0).Err(); err != nil {
		return fmt.Errorf("failed to seed sequence %s: %w", key, err)
	}
	return nil
}
