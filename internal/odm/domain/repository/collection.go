package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the subset of *mongo.Collection the ODM issues requests against.
// Production code wraps a real collection; tests substitute an in-memory store.
type Collection interface {
	Name() string
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (Cursor, error)
	InsertOne(ctx context.Context, doc interface{}) (interface{}, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}) (int64, error)
	DeleteMany(ctx context.Context, filter interface{}) (int64, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	Distinct(ctx context.Context, field string, filter interface{}) ([]interface{}, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (Cursor, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) SingleResult
	Indexes() IndexView
}

// SingleResult decodes one document. Decode returns mongo.ErrNoDocuments on a miss.
type SingleResult interface {
	Decode(v interface{}) error
}

// Cursor iterates over a result set.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Close(ctx context.Context) error
	Err() error
}

// UpdateResult reports the outcome of UpdateOne.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    interface{}
}

// IndexSpec describes an existing index.
type IndexSpec struct {
	Name   string
	Keys   bson.D
	Unique bool
}

// IndexView lists and creates indexes on one collection.
type IndexView interface {
	ListSpecifications(ctx context.Context) ([]IndexSpec, error)
	CreateOne(ctx context.Context, model mongo.IndexModel) (string, error)
}
