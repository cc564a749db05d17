package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"mongodb-orm/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         "localhost:6379",
		DB:           15,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func TestSequenceAllocator_Key(t *testing.T) {
	a := NewSequenceAllocator(createTestRedisClient(), nil)
	assert.Equal(t, "id_sequences:User", a.Key("User"))
}

func TestSequenceAllocator_EmptyKey(t *testing.T) {
	a := NewSequenceAllocator(createTestRedisClient(), logger.NopLogger{})
	_, err := a.Next(context.Background(), "")
	assert.Error(t, err)
}

func TestSequenceAllocator_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	a := NewSequenceAllocator(client, logger.NopLogger{})
	_, err := a.Next(context.Background(), "User")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to allocate id for User")
}

func TestSequenceAllocator_Live(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := createTestRedisClient()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing:", err)
	}
	defer func() {
		client.FlushDB(context.Background())
		client.Close()
	}()

	a := NewSequenceAllocator(client, logger.NopLogger{})
	client.Del(ctx, a.Key("Book"))

	t.Run("first value is 1", func(t *testing.T) {
		id, err := a.Next(ctx, "Book")
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)
	})

	t.Run("concurrent allocations are distinct", func(t *testing.T) {
		const n = 50
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			seen = make(map[int64]bool)
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := a.Next(ctx, "Book")
				assert.NoError(t, err)
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, n)
	})

	t.Run("seed only raises", func(t *testing.T) {
		require.NoError(t, a.Seed(ctx, "Seeded", 100))
		require.NoError(t, a.Seed(ctx, "Seeded", 10))
		id, err := a.Next(ctx, "Seeded")
		require.NoError(t, err)
		assert.Equal(t, int64(101), id)
	})
}
