package testutil

import (
	"context"
	"sync"

	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
)

// MemoryConnector satisfies repository.Connector with MemoryCollections keyed by
// database and collection name. Collections survive re-connection.
type MemoryConnector struct {
	// NewAllocator builds the allocator over the id_sequences collection.
	NewAllocator func(sequences repository.Collection) repository.SequenceAllocator
	// NewIndexes builds the index manager over the model collection.
	NewIndexes func(col repository.Collection) repository.IndexManager

	mu          sync.Mutex
	collections map[string]*MemoryCollection
	failures    map[string]error
	connects    int
}

// NewMemoryConnector creates a connector with no collections.
func NewMemoryConnector(
	newAllocator func(repository.Collection) repository.SequenceAllocator,
	newIndexes func(repository.Collection) repository.IndexManager,
) *MemoryConnector {
	return &MemoryConnector{
		NewAllocator: newAllocator,
		NewIndexes:   newIndexes,
		collections:  make(map[string]*MemoryCollection),
		failures:     make(map[string]error),
	}
}

var _ repository.Connector = (*MemoryConnector)(nil)

func (c *MemoryConnector) collection(db, name string) *MemoryCollection {
	key := db + "." + name
	col, ok := c.collections[key]
	if !ok {
		col = NewMemoryCollection(name)
		c.collections[key] = col
	}
	return col
}

// Collection returns (creating if needed) the collection db.name.
func (c *MemoryConnector) Collection(db, name string) *MemoryCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collection(db, name)
}

// FailFor makes Connect return err for the given collection name. A nil err clears it.
func (c *MemoryConnector) FailFor(collection string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, collection)
		return
	}
	c.failures[collection] = err
}

// Connects returns how many times Connect was called with a valid configuration.
func (c *MemoryConnector) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *MemoryConnector) Connect(ctx context.Context, cfg config.ModelConfig, shared interface{}) (*repository.Handles, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if err := c.failures[cfg.CollectionName]; err != nil {
		return nil, err
	}

	col := c.collection(cfg.DatabaseName, cfg.CollectionName)
	seqs := c.collection(cfg.DatabaseName, model.SequenceCollection)
	h := &repository.Handles{
		Client:     shared,
		Collection: col,
		Sequences:  seqs,
	}
	if c.NewAllocator != nil {
		h.Allocator = c.NewAllocator(seqs)
	}
	if c.NewIndexes != nil {
		h.Indexes = c.NewIndexes(col)
	}
	return h, nil
}
