package odm

import (
	"context"
	stderrors "errors"
	"fmt"

	odmhttp "mongodb-orm/internal/odm/adapter/http"
	"mongodb-orm/internal/odm/adapter/persistence/mongodb"
	redisseq "mongodb-orm/internal/odm/adapter/persistence/redis"
	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
	"mongodb-orm/internal/odm/usecase"
	"mongodb-orm/internal/shared/eventbus"
	"mongodb-orm/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ODMModule wires settings, connections, the sequence backend, the event bus and
// the model registry together.
type ODMModule struct {
	settings    *config.Settings
	registry    *usecase.Registry
	bus         *eventbus.EventBus
	connections *mongodb.ConnectionManager
	redisClient *redis.Client
	logger      logger.Logger
}

// ModuleOption customizes NewODMModule.
type ModuleOption func(*moduleOptions)

type moduleOptions struct {
	connector repository.Connector
	bus       *eventbus.EventBus
}

// WithConnector replaces the MongoDB connection manager, e.g. with an in-memory store.
func WithConnector(c repository.Connector) ModuleOption {
	return func(o *moduleOptions) { o.connector = c }
}

// WithEventBus publishes document events on bus instead of a private one.
func WithEventBus(bus *eventbus.EventBus) ModuleOption {
	return func(o *moduleOptions) { o.bus = bus }
}

// NewODMModule creates a new ODM module instance
func NewODMModule(settings *config.Settings, log logger.Logger, opts ...ModuleOption) (*ODMModule, error) {
	if settings == nil {
		return nil, fmt.Errorf("odm settings are required")
	}
	log = logger.OrNop(log)
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	overrides, err := config.LoadOverrides(settings.OverridesFile)
	if err != nil {
		return nil, err
	}

	m := &ODMModule{settings: settings, logger: log.WithComponent("odm")}

	m.bus = o.bus
	if m.bus == nil {
		m.bus = eventbus.NewEventBusWithConfig(log, settings.BusConfig())
	}

	connector := o.connector
	if connector == nil {
		var cmOpts []mongodb.Option
		if settings.SequenceBackend == config.SequenceBackendRedis {
			m.redisClient = config.NewRedisClient(settings.Redis)
			cmOpts = append(cmOpts, mongodb.WithSequenceAllocator(redisseq.NewSequenceAllocator(m.redisClient, log)))
			m.logger.WithFields(map[string]interface{}{"addr": settings.Redis.GetAddr()}).Info("Using Redis sequence backend")
		}
		m.connections = mongodb.NewConnectionManager(log, cmOpts...)
		connector = m.connections
	}

	m.registry = usecase.NewRegistry(connector, settings, log,
		usecase.WithOverrides(overrides),
		usecase.WithPublisher(m.bus),
	)
	return m, nil
}

// Registry returns the model registry models bind to.
func (m *ODMModule) Registry() *usecase.Registry {
	return m.registry
}

// EventBus returns the bus document events are published on.
func (m *ODMModule) EventBus() *eventbus.EventBus {
	return m.bus
}

// Settings returns the process-wide defaults.
func (m *ODMModule) Settings() *config.Settings {
	return m.settings
}

// Ping checks every store the module owns a connection to.
func (m *ODMModule) Ping(ctx context.Context) error {
	if m.connections != nil {
		if err := m.connections.Ping(ctx); err != nil {
			return err
		}
	}
	if m.redisClient != nil {
		if err := m.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
	}
	return nil
}

// SeedSequences raises every registered model's counter to the highest id stored
// in its collection, so switching sequence backends never reissues an identity.
// It returns the floor applied per model; collections without documents are skipped.
func (m *ODMModule) SeedSequences(ctx context.Context) (map[string]int64, error) {
	seeded := map[string]int64{}
	for _, e := range m.registry.Entries() {
		seeder, ok := e.Handles.Allocator.(repository.SequenceSeeder)
		if !ok {
			return seeded, fmt.Errorf("sequence backend of %s cannot be seeded", e.Name)
		}

		var top model.Base
		err := e.Collection().FindOne(ctx, bson.M{},
			options.FindOne().
				SetSort(bson.D{{Key: model.IDField, Value: -1}}).
				SetProjection(bson.M{model.IDField: 1, model.NativeIDField: 0}),
		).Decode(&top)
		if stderrors.Is(err, mongo.ErrNoDocuments) || (err == nil && top.ID == nil) {
			continue
		}
		if err != nil {
			return seeded, fmt.Errorf("failed to read highest id of %s: %w", e.Name, err)
		}

		if err := seeder.Seed(ctx, e.Config.CollectionName, *top.ID); err != nil {
			return seeded, err
		}
		seeded[e.Name] = *top.ID
		m.logger.WithFields(map[string]interface{}{
			"model": e.Name,
			"floor": *top.ID,
		}).Info("Sequence seeded")
	}
	return seeded, nil
}

// RegisterRoutes mounts the REST surface for resources plus /health and /models.
func (m *ODMModule) RegisterRoutes(router fiber.Router, resources []usecase.Resource) {
	odmhttp.NewModelHandler(m.registry, resources, m, m.logger).RegisterRoutes(router)
}

// Stop disconnects owned clients.
func (m *ODMModule) Stop(ctx context.Context) error {
	var firstErr error
	if m.connections != nil {
		m.logger.WithFields(map[string]interface{}{
			"clients": m.connections.ClientCount(),
		}).Info("Stopping ODM module")
		firstErr = m.connections.Close(ctx)
	}
	if m.redisClient != nil {
		if err := m.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close Redis client: %w", err)
		}
	}
	return firstErr
}
