package mongodb

import (
	"context"
	"fmt"

	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
	"mongodb-orm/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexOperations declares unique indexes on one model collection.
type IndexOperations struct {
	col    repository.Collection
	logger logger.Logger
}

// NewIndexOperations binds index management to col.
func NewIndexOperations(col repository.Collection, log logger.Logger) *IndexOperations {
	return &IndexOperations{
		col:    col,
		logger: logger.OrNop(log).WithComponent("index_operations"),
	}
}

var _ repository.IndexManager = (*IndexOperations)(nil)

// EnsureUniqueIndex creates a unique single-field index unless one with the same key exists.
func (i *IndexOperations) EnsureUniqueIndex(ctx context.Context, field string, direction model.IndexDirection) (bool, error) {
	return i.EnsureUniqueIndexTogether(ctx, []model.IndexKey{{Field: field, Direction: direction}})
}

// EnsureUniqueIndexTogether creates a unique compound index over keys, in order,
// unless an existing index already covers exactly the same keys.
func (i *IndexOperations) EnsureUniqueIndexTogether(ctx context.Context, keys []model.IndexKey) (bool, error) {
	if len(keys) == 0 {
		return false, fmt.Errorf("index requires at least one key")
	}
	for _, k := range keys {
		if err := k.Validate(); err != nil {
			return false, err
		}
	}

	signature := model.KeySignature(keys)
	log := i.logger.WithFields(map[string]interface{}{
		"collection": i.col.Name(),
		"index":      signature,
	})

	specs, err := i.col.Indexes().ListSpecifications(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list indexes on %s: %w", i.col.Name(), err)
	}

	matches := 0
	for _, spec := range specs {
		if spec.Name == signature || specSignature(spec.Keys) == signature {
			matches++
		}
	}
	if matches > 0 {
		if matches > 1 {
			log.Warnf("Found %d indexes matching the same keys", matches)
		}
		log.Info("Index already exists")
		return false, nil
	}

	keyDoc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		keyDoc = append(keyDoc, bson.E{Key: k.Field, Value: int32(k.Direction)})
	}
	name, err := i.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keyDoc,
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Failed to create index")
		return false, fmt.Errorf("failed to create index %s on %s: %w", signature, i.col.Name(), err)
	}

	log.WithFields(map[string]interface{}{"name": name}).Info("Index created")
	return true, nil
}

// specSignature renders an existing index key document the same way as model.KeySignature.
// Non-numeric directions (text, hashed, 2dsphere) never match a unique declaration.
func specSignature(keys bson.D) string {
	out := make([]model.IndexKey, 0, len(keys))
	for _, e := range keys {
		dir, ok := numericDirection(e.Value)
		if !ok {
			return ""
		}
		out = append(out, model.IndexKey{Field: e.Key, Direction: dir})
	}
	return model.KeySignature(out)
}

func numericDirection(v interface{}) (model.IndexDirection, bool) {
	var f float64
	switch n := v.(type) {
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case float64:
		f = n
	default:
		return 0, false
	}
	switch {
	case f > 0:
		return model.Ascending, true
	case f < 0:
		return model.Descending, true
	default:
		return 0, false
	}
}
