package repository

import (
	"context"

	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
)

// SequenceAllocator mints distinct, increasing integers per key.
type SequenceAllocator interface {
	Next(ctx context.Context, key string) (int64, error)
}

// SequenceSeeder raises a counter so later allocations never reuse identities
// already present in a collection.
type SequenceSeeder interface {
	Seed(ctx context.Context, key string, floor int64) error
}

// IndexManager declares unique indexes idempotently.
type IndexManager interface {
	EnsureUniqueIndex(ctx context.Context, field string, direction model.IndexDirection) (bool, error)
	EnsureUniqueIndexTogether(ctx context.Context, keys []model.IndexKey) (bool, error)
}

// Handles are the store handles held for one model between (re)initializations.
type Handles struct {
	// Client is the underlying driver client, *mongo.Client in production.
	Client     interface{}
	Collection Collection
	Sequences  Collection
	Allocator  SequenceAllocator
	Indexes    IndexManager
}

// Connector opens or adopts a client for a resolved model configuration.
// shared is adopted when it is the driver's client type.
type Connector interface {
	Connect(ctx context.Context, cfg config.ModelConfig, shared interface{}) (*Handles, error)
}
