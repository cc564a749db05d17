package mongodb

import (
	"context"
	"fmt"

	"mongodb-orm/internal/odm/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollectionAdapter makes *mongo.Collection satisfy repository.Collection.
type MongoCollectionAdapter struct {
	col *mongo.Collection
}

// NewMongoCollectionAdapter wraps col.
func NewMongoCollectionAdapter(col *mongo.Collection) *MongoCollectionAdapter {
	return &MongoCollectionAdapter{col: col}
}

var _ repository.Collection = (*MongoCollectionAdapter)(nil)

func (m *MongoCollectionAdapter) Name() string {
	return m.col.Name()
}

func (m *MongoCollectionAdapter) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) repository.SingleResult {
	return m.col.FindOne(ctx, filter, opts...)
}

func (m *MongoCollectionAdapter) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (repository.Cursor, error) {
	cur, err := m.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (m *MongoCollectionAdapter) InsertOne(ctx context.Context, doc interface{}) (interface{}, error) {
	res, err := m.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (m *MongoCollectionAdapter) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*repository.UpdateResult, error) {
	res, err := m.col.UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	return &repository.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

func (m *MongoCollectionAdapter) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	res, err := m.col.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *MongoCollectionAdapter) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	res, err := m.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *MongoCollectionAdapter) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return m.col.CountDocuments(ctx, filter)
}

func (m *MongoCollectionAdapter) Distinct(ctx context.Context, field string, filter interface{}) ([]interface{}, error) {
	return m.col.Distinct(ctx, field, filter)
}

func (m *MongoCollectionAdapter) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (repository.Cursor, error) {
	cur, err := m.col.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (m *MongoCollectionAdapter) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) repository.SingleResult {
	return m.col.FindOneAndUpdate(ctx, filter, update, opts...)
}

func (m *MongoCollectionAdapter) Indexes() repository.IndexView {
	return &MongoIndexViewAdapter{view: m.col.Indexes()}
}

// MongoIndexViewAdapter exposes mongo.IndexView through repository.IndexView.
type MongoIndexViewAdapter struct {
	view mongo.IndexView
}

// ListSpecifications decodes each index's key document into an ordered bson.D.
func (v *MongoIndexViewAdapter) ListSpecifications(ctx context.Context) ([]repository.IndexSpec, error) {
	specs, err := v.view.ListSpecifications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]repository.IndexSpec, 0, len(specs))
	for _, spec := range specs {
		var keys bson.D
		if err := bson.Unmarshal(spec.KeysDocument, &keys); err != nil {
			return nil, fmt.Errorf("failed to decode keys of index %s: %w", spec.Name, err)
		}
		out = append(out, repository.IndexSpec{
			Name:   spec.Name,
			Keys:   keys,
			Unique: spec.Unique != nil && *spec.Unique,
		})
	}
	return out, nil
}

func (v *MongoIndexViewAdapter) CreateOne(ctx context.Context, model mongo.IndexModel) (string, error) {
	return v.view.CreateOne(ctx, model)
}
