package usecase_test

import (
	"context"
	"testing"

	"mongodb-orm/internal/odm/adapter/persistence/mongodb"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/usecase"
	"mongodb-orm/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type Publisher struct {
	Name string `bson:"name"`
	City string `bson:"city"`
}

type Edition struct {
	model.Base `bson:",inline"`
	Title      string    `bson:"title"`
	Publisher  Publisher `bson:"publisher"`
}

func TestModel_FilterThroughDriver(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	const ns = "library.Edition"

	bind := func(mt *mtest.T) *usecase.Model[Edition, *Edition] {
		registry := usecase.NewRegistry(mongodb.NewConnectionManager(logger.NopLogger{}), testSettings(), logger.NopLogger{})
		editions, res := usecase.Bind[Edition](context.Background(), registry, mt.Client)
		require.NoError(mt, res.Err)
		return editions
	}

	mt.Run("flat nested field", func(mt *mtest.T) {
		editions := bind(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "id", Value: int64(1)}, {Key: "publisher", Value: bson.D{{Key: "city", Value: "Boston"}}}},
			bson.D{{Key: "id", Value: int64(2)}},
			bson.D{{Key: "id", Value: int64(3)}, {Key: "publisher", Value: bson.D{{Key: "city", Value: "London"}}}},
		))

		res, err := editions.Filter(context.Background(), model.Query{
			"projection": bson.M{"publisher.city": 1, "flat": true},
		})
		require.NoError(mt, err)
		assert.Equal(mt, model.ResultScalars, res.Kind)
		assert.Equal(mt, []interface{}{"Boston", nil, "London"}, res.Scalars)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "find", started.CommandName)
		assert.False(mt, started.Command.Lookup("projection", "publisher.city").IsZero())
		assert.False(mt, started.Command.Lookup("projection", "_id").IsZero())
		assert.True(mt, started.Command.Lookup("projection", "flat").IsZero())
		assert.False(mt, started.Command.Lookup("sort", "id").IsZero())
	})

	mt.Run("flat ids", func(mt *mtest.T) {
		editions := bind(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "id", Value: int64(4)}},
			bson.D{{Key: "id", Value: int64(9)}},
		))

		res, err := editions.Filter(context.Background(), model.Query{
			"projection": map[string]interface{}{"id": 1, "flat": true},
		})
		require.NoError(mt, err)
		assert.Equal(mt, []interface{}{int64(4), int64(9)}, res.Scalars)
	})

	mt.Run("nested records decode as maps", func(mt *mtest.T) {
		editions := bind(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "title", Value: "Walden"},
				{Key: "publisher", Value: bson.D{{Key: "name", Value: "Ticknor"}, {Key: "city", Value: "Boston"}}},
			},
		))

		res, err := editions.Filter(context.Background(), model.Query{
			"projection": bson.M{"title": 1, "publisher": 1},
		})
		require.NoError(mt, err)
		require.Len(mt, res.Records, 1)
		publisher, ok := res.Records[0]["publisher"].(bson.M)
		require.True(mt, ok, "got %T", res.Records[0]["publisher"])
		assert.Equal(mt, "Boston", publisher["city"])
	})

	mt.Run("instances", func(mt *mtest.T) {
		editions := bind(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "id", Value: int64(1)},
				{Key: "title", Value: "Walden"},
				{Key: "publisher", Value: bson.D{{Key: "name", Value: "Ticknor"}, {Key: "city", Value: "Boston"}}},
			},
		))

		all, err := editions.All(context.Background())
		require.NoError(mt, err)
		require.Len(mt, all, 1)
		assert.Equal(mt, "Ticknor", all[0].Publisher.Name)
		require.NotNil(mt, all[0].ID)
		assert.Equal(mt, int64(1), *all[0].ID)
	})
}
