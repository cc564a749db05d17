package mongodb

import (
	"context"
	"fmt"

	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SequenceGenerator mints identities from counter documents in id_sequences.
// Uniqueness relies on findOneAndUpdate being atomic on the server; there is no local lock.
type SequenceGenerator struct {
	col repository.Collection
}

// NewSequenceGenerator uses col as the counters collection.
func NewSequenceGenerator(col repository.Collection) *SequenceGenerator {
	return &SequenceGenerator{col: col}
}

var (
	_ repository.SequenceAllocator = (*SequenceGenerator)(nil)
	_ repository.SequenceSeeder    = (*SequenceGenerator)(nil)
)

// Next increments the counter for key, creating it on first use, and returns
// the post-increment value. The first value for a new key is 1.
func (g *SequenceGenerator) Next(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("sequence key cannot be empty")
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter model.SequenceCounter
	err := g.col.FindOneAndUpdate(ctx,
		bson.M{model.NativeIDField: key},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id for %s: %w", key, err)
	}
	return counter.Seq, nil
}

// Seed raises the counter for key to at least floor with $max, creating it when missing.
func (g *SequenceGenerator) Seed(ctx context.Context, key string, floor int64) error {
	if key == "" {
		return fmt.Errorf("sequence key cannot be empty")
	}
	_, err := g.col.UpdateOne(ctx,
		bson.M{model.NativeIDField: key},
		bson.M{"$max": bson.M{"seq": floor}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to seed sequence %s: %w", key, err)
	}
	return nil
}
