package usecase_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
	"mongodb-orm/internal/odm/usecase"
	apperrors "mongodb-orm/internal/shared/errors"
	"mongodb-orm/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

const thisPkg = "mongodb-orm/internal/odm/usecase_test"

func TestDiscoverModels(t *testing.T) {
	types := usecase.DiscoverModels(thisPkg, Book{}, &Author{}, notADocument{}, bson.M{}, &Book{}, model.Base{})

	require.Len(t, types, 2)
	assert.Equal(t, reflect.TypeOf(Book{}), types[0])
	assert.Equal(t, reflect.TypeOf(Author{}), types[1])

	assert.Empty(t, usecase.DiscoverModels("some/other/pkg", Book{}))
}

func TestRegistry_ResolveOverridePriority(t *testing.T) {
	registry := usecase.NewRegistry(newMemoryConnector(), testSettings(), logger.NopLogger{},
		usecase.WithOverrides(map[string]config.Override{
			"Archive": {DatabaseName: "from-file", MongoURI: "mongodb://file:27017"},
			"Author":  {CollectionName: "writers"},
		}),
	)

	archive := registry.Resolve(reflect.TypeOf(Archive{}))
	assert.Equal(t, "cold", archive.DatabaseName)
	assert.Equal(t, "archives", archive.CollectionName)
	assert.Equal(t, "mongodb://file:27017", archive.MongoURI)

	author := registry.Resolve(reflect.TypeOf(Author{}))
	assert.Equal(t, config.ModelConfig{
		MongoURI:       "mongodb://localhost:27017",
		DatabaseName:   "library",
		CollectionName: "writers",
	}, author)

	book := registry.Resolve(reflect.TypeOf(Book{}))
	assert.Equal(t, "Book", book.CollectionName)
}

func TestRegistry_RegisterMissingConfiguration(t *testing.T) {
	connector := newMemoryConnector()
	registry := usecase.NewRegistry(connector, &config.Settings{}, logger.NopLogger{})

	res := registry.Register(context.Background(), &Book{}, nil)
	require.Error(t, res.Err)
	assert.False(t, res.OK())
	assert.True(t, apperrors.IsConfiguration(res.Err))

	_, ok := registry.Lookup(reflect.TypeOf(Book{}))
	assert.False(t, ok)
}

func TestRegistry_RegisterRejectsNonDocuments(t *testing.T) {
	registry := usecase.NewRegistry(newMemoryConnector(), testSettings(), logger.NopLogger{})

	res := registry.Register(context.Background(), notADocument{}, nil)
	assert.ErrorIs(t, res.Err, apperrors.ErrNotADocument)

	res = registry.Register(context.Background(), nil, nil)
	assert.Error(t, res.Err)
}

func TestRegistry_RegisterAllIsolatesFailures(t *testing.T) {
	connector := newMemoryConnector()
	connector.FailFor("Author", errors.New("server selection timeout"))
	registry := usecase.NewRegistry(connector, testSettings(), logger.NopLogger{})

	results := registry.RegisterAll(context.Background(), []interface{}{&Book{}, &Author{}, &Archive{}, notADocument{}}, nil)
	require.Len(t, results, 4)

	assert.True(t, results[0].OK())
	assert.Equal(t, "Book", results[0].Model)
	assert.False(t, results[1].OK())
	assert.Equal(t, "Author", results[1].Model)
	assert.True(t, results[2].OK())
	assert.Equal(t, "archives", results[2].Config.CollectionName)
	assert.False(t, results[3].OK())

	entries := registry.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Archive", entries[0].Name)
	assert.Equal(t, "Book", entries[1].Name)
}

func TestRegistry_ReinitializationReplacesEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.books.CreateFromFields(ctx, model.Record{"title": "first"})
	require.NoError(t, err)

	before, ok := f.registry.Lookup(reflect.TypeOf(Book{}))
	require.True(t, ok)

	shared := "opaque client"
	res := f.registry.Register(ctx, Book{}, shared)
	require.NoError(t, res.Err)

	after, ok := f.registry.Lookup(reflect.TypeOf(Book{}))
	require.True(t, ok)
	assert.NotSame(t, before, after)
	assert.Equal(t, shared, after.Handles.Client)

	// A failed re-initialization leaves no entry behind.
	f.connector.FailFor("Book", errors.New("auth failed"))
	res = f.registry.Register(ctx, Book{}, nil)
	require.Error(t, res.Err)

	_, err = f.books.All(ctx)
	assert.ErrorIs(t, err, apperrors.ErrModelNotRegistered)
}

func TestRegistry_LookupByName(t *testing.T) {
	f := newFixture()

	e, ok := f.registry.LookupByName("Book")
	require.True(t, ok)
	assert.Equal(t, "Book", e.Config.CollectionName)
	assert.Equal(t, "library", e.Config.DatabaseName)

	_, ok = f.registry.LookupByName("Nope")
	assert.False(t, ok)

	f.registry.Unregister(reflect.TypeOf(Book{}))
	_, ok = f.registry.LookupByName("Book")
	assert.False(t, ok)
}

type mockConnector struct {
	mock.Mock
}

func (m *mockConnector) Connect(ctx context.Context, cfg config.ModelConfig, shared interface{}) (*repository.Handles, error) {
	args := m.Called(ctx, cfg, shared)
	h, _ := args.Get(0).(*repository.Handles)
	return h, args.Error(1)
}

func TestRegistry_ConnectsWithResolvedConfig(t *testing.T) {
	connector := &mockConnector{}
	shared := struct{ name string }{"shared-client"}
	want := config.ModelConfig{
		MongoURI:       "mongodb://localhost:27017",
		DatabaseName:   "cold",
		CollectionName: "archives",
	}
	connector.On("Connect", mock.Anything, want, shared).
		Return(&repository.Handles{Client: shared}, nil).Once()

	registry := usecase.NewRegistry(connector, testSettings(), logger.NopLogger{})
	res := registry.Register(context.Background(), Archive{}, shared)
	require.NoError(t, res.Err)
	assert.Equal(t, want, res.Config)

	entry, ok := registry.Lookup(reflect.TypeOf(Archive{}))
	require.True(t, ok)
	assert.Equal(t, shared, entry.Handles.Client)
	connector.AssertExpectations(t)
}

func TestRegistry_ConnectFailureIsWrapped(t *testing.T) {
	connector := &mockConnector{}
	cause := errors.New("auth failed")
	connector.On("Connect", mock.Anything, mock.AnythingOfType("config.ModelConfig"), nil).
		Return(nil, cause)

	registry := usecase.NewRegistry(connector, testSettings(), logger.NopLogger{})
	res := registry.Register(context.Background(), &Author{}, nil)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, cause)
	assert.Contains(t, res.Err.Error(), "Author")

	_, ok := registry.Lookup(reflect.TypeOf(Author{}))
	assert.False(t, ok)
}
