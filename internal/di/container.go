package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"mongodb-orm/internal/library"
	"mongodb-orm/internal/odm"
	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/usecase"
	"mongodb-orm/internal/shared/logger"
)

// Container represents a dependency injection container with proper lifecycle management
type Container struct {
	mu        sync.RWMutex
	services  map[reflect.Type]interface{}
	factories map[reflect.Type]func() (interface{}, error)
	// Module instances
	ODMModule *odm.ODMModule
	Catalog   *library.Catalog
	// Configuration
	Settings *config.Settings
	// Logger
	Logger logger.Logger
}

// NewContainer creates a new DI container
func NewContainer(log logger.Logger) *Container {
	return &Container{
		services:  make(map[reflect.Type]interface{}),
		factories: make(map[reflect.Type]func() (interface{}, error)),
		Logger:    logger.OrNop(log),
	}
}

// InitializeODM builds the ODM module from settings
func (c *Container) InitializeODM(settings *config.Settings, opts ...odm.ModuleOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	module, err := odm.NewODMModule(settings, c.Logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create ODM module: %w", err)
	}

	c.Settings = settings
	c.ODMModule = module
	return nil
}

// InitializeLibrary registers the library models. Per-model failures are returned
// in the results and logged; the catalog is usable for the models that succeeded.
func (c *Container) InitializeLibrary(ctx context.Context, shared interface{}) ([]usecase.RegistrationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ODMModule == nil {
		return nil, fmt.Errorf("ODM module must be initialized before the library")
	}

	catalog, results := library.NewCatalog(ctx, c.ODMModule.Registry(), shared, c.Logger)
	c.Catalog = catalog
	return results, nil
}

// Register registers a service instance
func (c *Container) Register(service interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	serviceType := reflect.TypeOf(service)
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}

	c.services[serviceType] = service
	return nil
}

// RegisterFactory registers a factory function for a service
func (c *Container) RegisterFactory(serviceType reflect.Type, factory func() (interface{}, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[serviceType] = factory
	return nil
}

// Resolve resolves a service by type
func (c *Container) Resolve(serviceType reflect.Type) (interface{}, error) {
	c.mu.RLock()

	if service, exists := c.services[serviceType]; exists {
		c.mu.RUnlock()
		return service, nil
	}

	if factory, exists := c.factories[serviceType]; exists {
		c.mu.RUnlock()

		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service: %w", err)
		}

		c.mu.Lock()
		c.services[serviceType] = service
		c.mu.Unlock()

		return service, nil
	}

	c.mu.RUnlock()
	return nil, fmt.Errorf("service of type %v not registered", serviceType)
}

// GetService is a generic helper for resolving services
func GetService[T any](c *Container) (T, error) {
	var zero T
	serviceType := reflect.TypeOf((*T)(nil)).Elem()
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}

	service, err := c.Resolve(serviceType)
	if err != nil {
		return zero, err
	}

	if typedService, ok := service.(T); ok {
		return typedService, nil
	}

	return zero, fmt.Errorf("service is not of expected type %T", zero)
}

// GetODMModule returns the ODM module instance
func (c *Container) GetODMModule() *odm.ODMModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ODMModule
}

// GetCatalog returns the library catalog
func (c *Container) GetCatalog() *library.Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Catalog
}

// HealthCheck pings every store the ODM module is connected to
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ODMModule != nil {
		if err := c.ODMModule.Ping(ctx); err != nil {
			return fmt.Errorf("ODM health check failed: %w", err)
		}
	}
	return nil
}

// Cleanup performs cleanup of registered services with proper shutdown order
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	c.Catalog = nil
	if c.ODMModule != nil {
		if err := c.ODMModule.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop ODM module: %w", err))
		}
		c.ODMModule = nil
	}

	for _, service := range c.services {
		if cleaner, ok := service.(interface{ Cleanup(context.Context) error }); ok {
			if err := cleaner.Cleanup(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to cleanup service: %w", err))
			}
		}
	}

	c.services = make(map[reflect.Type]interface{})
	c.factories = make(map[reflect.Type]func() (interface{}, error))

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// Close gracefully shuts down all services in the container with timeout
func (c *Container) Close() error {
	c.Logger.Debug("Closing container resources")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil {
		c.Logger.Warnf("Cleanup errors occurred: %v", err)
		return err
	}

	c.Logger.Debug("Container resources closed")
	return nil
}
