package usecase_test

import (
	"context"
	"sync"

	"mongodb-orm/internal/odm/adapter/persistence/mongodb"
	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
	"mongodb-orm/internal/odm/testutil"
	"mongodb-orm/internal/odm/usecase"
	"mongodb-orm/internal/shared/eventbus"
	"mongodb-orm/internal/shared/logger"
)

type Book struct {
	model.Base `bson:",inline"`
	Title      string `bson:"title" json:"title"`
	Author     string `bson:"author" json:"author"`
	Year       int    `bson:"year" json:"year"`
}

type Author struct {
	model.Base `bson:",inline"`
	FirstName  string `bson:"first_name" json:"first_name"`
	LastName   string `bson:"last_name" json:"last_name"`
}

// Archive stores its documents in a dedicated collection.
type Archive struct {
	model.Base `bson:",inline"`
	Label      string `bson:"label"`
}

func (Archive) ODMOverride() config.Override {
	return config.Override{CollectionName: "archives", DatabaseName: "cold"}
}

// notADocument lacks model.Base.
type notADocument struct {
	Name string
}

func newMemoryConnector() *testutil.MemoryConnector {
	return testutil.NewMemoryConnector(
		func(seqs repository.Collection) repository.SequenceAllocator {
			return mongodb.NewSequenceGenerator(seqs)
		},
		func(col repository.Collection) repository.IndexManager {
			return mongodb.NewIndexOperations(col, logger.NopLogger{})
		},
	)
}

func testSettings() *config.Settings {
	return &config.Settings{MongoURI: "mongodb://localhost:27017", DatabaseName: "library"}
}

type fixture struct {
	connector *testutil.MemoryConnector
	registry  *usecase.Registry
	bus       *eventbus.EventBus
	events    *recordedEvents
	books     *usecase.Model[Book, *Book]
}

type recordedEvents struct {
	mu     sync.Mutex
	events []*eventbus.DocumentEvent
}

func (r *recordedEvents) handler(ctx context.Context, e eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if de, ok := e.(*eventbus.DocumentEvent); ok {
		r.events = append(r.events, de)
	}
	return nil
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newFixture() *fixture {
	connector := newMemoryConnector()
	bus := eventbus.NewEventBus(logger.NopLogger{})
	events := &recordedEvents{}
	for _, t := range []string{
		eventbus.EventTypeDocumentCreated,
		eventbus.EventTypeDocumentSaved,
		eventbus.EventTypeDocumentDeleted,
		eventbus.EventTypeModelRegistered,
	} {
		bus.Subscribe(t, events.handler)
	}

	registry := usecase.NewRegistry(connector, testSettings(), logger.NopLogger{}, usecase.WithPublisher(bus))
	books, res := usecase.Bind[Book](context.Background(), registry, nil)
	if res.Err != nil {
		panic(res.Err)
	}
	return &fixture{
		connector: connector,
		registry:  registry,
		bus:       bus,
		events:    events,
		books:     books,
	}
}

func (f *fixture) bookCollection() *testutil.MemoryCollection {
	return f.connector.Collection("library", "Book")
}
