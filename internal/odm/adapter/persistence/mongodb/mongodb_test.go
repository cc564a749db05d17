package mongodb

import (
	"context"
	"testing"

	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestSequenceGenerator_Next(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("first allocation returns 1", func(mt *mtest.T) {
		gen := NewSequenceGenerator(NewMongoCollectionAdapter(mt.DB.Collection(model.SequenceCollection)))

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: bson.D{{Key: "_id", Value: "User"}, {Key: "seq", Value: int64(1)}},
		}))

		id, err := gen.Next(context.Background(), "User")
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "findAndModify", started.CommandName)
		assert.True(t, started.Command.Lookup("upsert").Boolean())
		assert.True(t, started.Command.Lookup("new").Boolean())
		assert.Equal(t, "User", started.Command.Lookup("query", "_id").StringValue())
		assert.Equal(t, int64(1), started.Command.Lookup("update", "$inc", "seq").Int64())
	})

	mt.Run("store error is wrapped", func(mt *mtest.T) {
		gen := NewSequenceGenerator(NewMongoCollectionAdapter(mt.DB.Collection(model.SequenceCollection)))
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom"}))

		_, err := gen.Next(context.Background(), "User")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to allocate id for User")
	})

	mt.Run("empty key", func(mt *mtest.T) {
		gen := NewSequenceGenerator(NewMongoCollectionAdapter(mt.DB.Collection(model.SequenceCollection)))
		_, err := gen.Next(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestSequenceGenerator_Seed(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("raises with max and upsert", func(mt *mtest.T) {
		gen := NewSequenceGenerator(NewMongoCollectionAdapter(mt.DB.Collection(model.SequenceCollection)))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}))

		require.NoError(mt, gen.Seed(context.Background(), "User", 42))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
		update := started.Command.Lookup("updates").Array().Index(0).Value().Document()
		assert.Equal(mt, "User", update.Lookup("q", "_id").StringValue())
		assert.Equal(mt, int64(42), update.Lookup("u", "$max", "seq").Int64())
		assert.True(mt, update.Lookup("upsert").Boolean())
	})

	mt.Run("store error is wrapped", func(mt *mtest.T) {
		gen := NewSequenceGenerator(NewMongoCollectionAdapter(mt.DB.Collection(model.SequenceCollection)))
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom"}))

		err := gen.Seed(context.Background(), "User", 42)
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to seed sequence User")
	})
}

func TestIndexOperations_EnsureUniqueIndex(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates index when missing", func(mt *mtest.T) {
		ops := NewIndexOperations(NewMongoCollectionAdapter(mt.Coll), &TestLogger{})
		ns := mt.DB.Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "v", Value: int32(2)}, {Key: "key", Value: bson.D{{Key: "_id", Value: int32(1)}}}, {Key: "name", Value: "_id_"}},
			),
			mtest.CreateSuccessResponse(),
		)

		created, err := ops.EnsureUniqueIndex(context.Background(), "email", model.Ascending)
		require.NoError(t, err)
		assert.True(t, created)

		mt.GetStartedEvent() // listIndexes
		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "createIndexes", started.CommandName)
	})

	mt.Run("skips existing index", func(mt *mtest.T) {
		ops := NewIndexOperations(NewMongoCollectionAdapter(mt.Coll), &TestLogger{})
		ns := mt.DB.Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "v", Value: int32(2)}, {Key: "key", Value: bson.D{{Key: "_id", Value: int32(1)}}}, {Key: "name", Value: "_id_"}},
				bson.D{{Key: "v", Value: int32(2)}, {Key: "key", Value: bson.D{{Key: "email", Value: int32(1)}}}, {Key: "name", Value: "email_1"}, {Key: "unique", Value: true}},
			),
		)

		created, err := ops.EnsureUniqueIndex(context.Background(), "email", model.Ascending)
		require.NoError(t, err)
		assert.False(t, created)
	})

	mt.Run("compound prefix is not a match", func(mt *mtest.T) {
		ops := NewIndexOperations(NewMongoCollectionAdapter(mt.Coll), &TestLogger{})
		ns := mt.DB.Name() + "." + mt.Coll.Name()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "v", Value: int32(2)}, {Key: "key", Value: bson.D{{Key: "a", Value: int32(1)}}}, {Key: "name", Value: "a_1"}},
			),
			mtest.CreateSuccessResponse(),
		)

		created, err := ops.EnsureUniqueIndexTogether(context.Background(), []model.IndexKey{
			{Field: "a", Direction: model.Ascending},
			{Field: "b", Direction: model.Descending},
		})
		require.NoError(t, err)
		assert.True(t, created)
	})

	mt.Run("invalid keys", func(mt *mtest.T) {
		ops := NewIndexOperations(NewMongoCollectionAdapter(mt.Coll), &TestLogger{})

		_, err := ops.EnsureUniqueIndexTogether(context.Background(), nil)
		assert.Error(t, err)
		_, err = ops.EnsureUniqueIndex(context.Background(), "email", model.IndexDirection(3))
		assert.Error(t, err)
	})
}

func TestSpecSignature(t *testing.T) {
	assert.Equal(t, "a_1_b_-1", specSignature(bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: float64(-1)}}))
	assert.Equal(t, "", specSignature(bson.D{{Key: "body", Value: "text"}}))
}

func TestConnectionManager_Connect(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("adopts shared client", func(mt *mtest.T) {
		cm := NewConnectionManager(&TestLogger{})
		cfg := config.ModelConfig{MongoURI: "mongodb://unused:27017", DatabaseName: mt.DB.Name(), CollectionName: "users"}

		handles, err := cm.Connect(context.Background(), cfg, mt.Client)
		require.NoError(t, err)
		assert.Same(t, mt.Client, handles.Client)
		assert.Equal(t, "users", handles.Collection.Name())
		assert.Equal(t, model.SequenceCollection, handles.Sequences.Name())
		assert.Equal(t, 0, cm.ClientCount())

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: bson.D{{Key: "_id", Value: "users"}, {Key: "seq", Value: int64(7)}},
		}))
		id, err := handles.Allocator.Next(context.Background(), "users")
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
	})

	mt.Run("rejects incomplete configuration", func(mt *mtest.T) {
		cm := NewConnectionManager(&TestLogger{})

		_, err := cm.Connect(context.Background(), config.ModelConfig{DatabaseName: "db", CollectionName: "users"}, mt.Client)
		assert.Error(t, err)
	})

	mt.Run("uses injected allocator", func(mt *mtest.T) {
		alloc := &fixedAllocator{next: 42}
		cm := NewConnectionManager(&TestLogger{}, WithSequenceAllocator(alloc))
		cfg := config.ModelConfig{MongoURI: "mongodb://unused:27017", DatabaseName: "db", CollectionName: "users"}

		handles, err := cm.Connect(context.Background(), cfg, mt.Client)
		require.NoError(t, err)
		assert.Same(t, alloc, handles.Allocator)
	})
}

func TestConnectionManager_CachesClientsByURI(t *testing.T) {
	ctx := context.Background()
	cm := NewConnectionManager(logger.NopLogger{})
	defer cm.Close(ctx)

	cfg := config.ModelConfig{MongoURI: "mongodb://localhost:27017", DatabaseName: "db", CollectionName: "a"}
	first, err := cm.Connect(ctx, cfg, "not a client")
	require.NoError(t, err)

	cfg.CollectionName = "b"
	second, err := cm.Connect(ctx, cfg, nil)
	require.NoError(t, err)

	assert.Same(t, first.Client, second.Client)
	assert.Equal(t, 1, cm.ClientCount())

	require.NoError(t, cm.Close(ctx))
	assert.Equal(t, 0, cm.ClientCount())
}

type fixedAllocator struct {
	next int64
}

func (f *fixedAllocator) Next(ctx context.Context, key string) (int64, error) {
	f.next++
	return f.next, nil
}
