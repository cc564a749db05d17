package mongodb

import (
	"context"
	"fmt"
	"sync"

	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
	"mongodb-orm/internal/shared/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectionManager hands out store handles per model configuration.
// Clients it opens itself are cached by URI and shared between models.
type ConnectionManager struct {
	clients   map[string]*mongo.Client // uri -> client opened by this manager
	mu        sync.RWMutex
	allocator repository.SequenceAllocator
	logger    logger.Logger
}

// Option customizes a ConnectionManager.
type Option func(*ConnectionManager)

// WithSequenceAllocator replaces the per-model id_sequences generator with a
// process-wide allocator, e.g. the Redis one.
func WithSequenceAllocator(a repository.SequenceAllocator) Option {
	return func(cm *ConnectionManager) {
		cm.allocator = a
	}
}

// NewConnectionManager creates a manager with an empty client cache.
func NewConnectionManager(log logger.Logger, opts ...Option) *ConnectionManager {
	cm := &ConnectionManager{
		clients: make(map[string]*mongo.Client),
		logger:  logger.OrNop(log).WithComponent("connection_manager"),
	}
	for _, opt := range opts {
		opt(cm)
	}
	return cm
}

var _ repository.Connector = (*ConnectionManager)(nil)

// Connect validates cfg and returns the handles for one model. A shared
// *mongo.Client is adopted as-is; anything else falls back to a client for cfg.MongoURI.
func (cm *ConnectionManager) Connect(ctx context.Context, cfg config.ModelConfig, shared interface{}) (*repository.Handles, error) {
	log := cm.logger.WithFields(map[string]interface{}{
		"database":   cfg.DatabaseName,
		"collection": cfg.CollectionName,
	})

	if err := cfg.Validate(); err != nil {
		log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Refusing to connect with incomplete configuration")
		return nil, err
	}

	var client *mongo.Client
	switch c := shared.(type) {
	case *mongo.Client:
		if c != nil {
			client = c
		}
	case nil:
	default:
		log.Warnf("Ignoring shared client of unsupported type %T", shared)
	}

	if client == nil {
		var err error
		client, err = cm.clientFor(ctx, cfg.MongoURI)
		if err != nil {
			log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Failed to open client")
			return nil, err
		}
	}

	db := client.Database(cfg.DatabaseName)
	col := NewMongoCollectionAdapter(db.Collection(cfg.CollectionName))
	seqs := NewMongoCollectionAdapter(db.Collection(model.SequenceCollection))

	allocator := cm.allocator
	if allocator == nil {
		allocator = NewSequenceGenerator(seqs)
	}

	log.Info("Model connected")

	return &repository.Handles{
		Client:     client,
		Collection: col,
		Sequences:  seqs,
		Allocator:  allocator,
		Indexes:    NewIndexOperations(col, cm.logger),
	}, nil
}

func (cm *ConnectionManager) clientFor(ctx context.Context, uri string) (*mongo.Client, error) {
	cm.mu.RLock()
	if c, exists := cm.clients[uri]; exists {
		cm.mu.RUnlock()
		return c, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if c, exists := cm.clients[uri]; exists {
		return c, nil
	}

	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	cm.clients[uri] = c

	cm.logger.Info("Opened new MongoDB client")
	return c, nil
}

// Ping checks every client this manager opened.
func (cm *ConnectionManager) Ping(ctx context.Context) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, c := range cm.clients {
		if err := c.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("failed to ping MongoDB: %w", err)
		}
	}
	return nil
}

// ClientCount returns how many clients the manager owns.
func (cm *ConnectionManager) ClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// Close disconnects every client the manager opened. Adopted clients are left alone.
func (cm *ConnectionManager) Close(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for uri, c := range cm.clients {
		if err := c.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to disconnect MongoDB client: %w", err)
		}
		delete(cm.clients, uri)
	}

	cm.logger.Info("Closed all MongoDB clients")
	return firstErr
}
