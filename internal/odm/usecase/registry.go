package usecase

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/domain/repository"
	"mongodb-orm/internal/shared/errors"
	"mongodb-orm/internal/shared/eventbus"
	"mongodb-orm/internal/shared/logger"

	"golang.org/x/sync/errgroup"
)

var documentType = reflect.TypeOf((*model.Document)(nil)).Elem()

// Entry is everything held for one registered model type between (re)initializations.
type Entry struct {
	Name    string
	Type    reflect.Type
	Config  config.ModelConfig
	Handles *repository.Handles
}

// Collection returns the model's own collection handle.
func (e *Entry) Collection() repository.Collection {
	return e.Handles.Collection
}

// RegistrationResult reports the outcome of registering one model type.
type RegistrationResult struct {
	Model  string             `json:"model"`
	Config config.ModelConfig `json:"config"`
	Err    error              `json:"-"`
}

// OK reports whether registration succeeded.
func (r RegistrationResult) OK() bool { return r.Err == nil }

// Registry owns the per-process table of model entries, keyed by Go type.
type Registry struct {
	entries   map[reflect.Type]*Entry
	mu        sync.RWMutex
	connector repository.Connector
	settings  *config.Settings
	overrides map[string]config.Override
	publisher eventbus.Publisher
	logger    logger.Logger
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithOverrides supplies per-model overrides, typically loaded from YAML.
func WithOverrides(overrides map[string]config.Override) RegistryOption {
	return func(r *Registry) {
		r.overrides = overrides
	}
}

// WithPublisher sends model and document lifecycle events to p.
func WithPublisher(p eventbus.Publisher) RegistryOption {
	return func(r *Registry) {
		r.publisher = p
	}
}

// NewRegistry creates an empty registry resolving configuration against settings.
func NewRegistry(connector repository.Connector, settings *config.Settings, log logger.Logger, opts ...RegistryOption) *Registry {
	if settings == nil {
		settings = &config.Settings{}
	}
	r := &Registry{
		entries:   make(map[reflect.Type]*Entry),
		connector: connector,
		settings:  settings,
		overrides: map[string]config.Override{},
		logger:    logger.OrNop(log).WithComponent("model_registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// modelType returns the struct type behind sample, which may be a value or a pointer.
func modelType(sample interface{}) (reflect.Type, error) {
	t := reflect.TypeOf(sample)
	if t == nil {
		return nil, errors.NewValidationError("model sample cannot be nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return nil, errors.NewValidationError(fmt.Sprintf("%s is not a named struct type", t))
	}
	if !reflect.PointerTo(t).Implements(documentType) {
		return nil, errors.NewValidationError(fmt.Sprintf("*%s does not implement model.Document", t.Name())).
			WithCause(errors.ErrNotADocument)
	}
	return t, nil
}

// DiscoverModels returns the candidates declared in pkgPath whose pointer implements
// model.Document, in the order given. Types from other packages are skipped.
func DiscoverModels(pkgPath string, candidates ...interface{}) []reflect.Type {
	var out []reflect.Type
	seen := make(map[reflect.Type]bool)
	for _, c := range candidates {
		t, err := modelType(c)
		if err != nil || t.PkgPath() != pkgPath || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Resolve computes the configuration for t without touching the store.
// The type's own ODMOverride wins over the overrides file, which wins over settings.
func (r *Registry) Resolve(t reflect.Type) config.ModelConfig {
	var typeOverride *config.Override
	if o, ok := reflect.New(t).Interface().(config.Overrider); ok {
		ov := o.ODMOverride()
		typeOverride = &ov
	}
	var fileOverride *config.Override
	if o, ok := r.overrides[t.Name()]; ok {
		fileOverride = &o
	}
	return config.Resolve(t.Name(), r.settings, typeOverride, fileOverride)
}

// Register (re)initializes one model type. A previous entry for the type is replaced
// on success and dropped on failure, so no partial state survives.
func (r *Registry) Register(ctx context.Context, sample interface{}, shared interface{}) RegistrationResult {
	t, err := modelType(sample)
	if err != nil {
		r.logger.WithFields(map[string]interface{}{
			"sample": fmt.Sprintf("%T", sample),
			"error":  err.Error(),
		}).Error("Model registration failed")
		return RegistrationResult{Model: fmt.Sprintf("%T", sample), Err: err}
	}

	cfg := r.Resolve(t)
	res := RegistrationResult{Model: t.Name(), Config: cfg}
	log := r.logger.WithFields(map[string]interface{}{
		"model":      t.Name(),
		"database":   cfg.DatabaseName,
		"collection": cfg.CollectionName,
	})

	handles, err := r.connector.Connect(ctx, cfg, shared)
	if err != nil {
		r.mu.Lock()
		delete(r.entries, t)
		r.mu.Unlock()

		log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Model registration failed")
		res.Err = fmt.Errorf("failed to register %s: %w", t.Name(), err)
		return res
	}

	r.mu.Lock()
	r.entries[t] = &Entry{Name: t.Name(), Type: t, Config: cfg, Handles: handles}
	r.mu.Unlock()

	log.Info("Model registered")
	if r.publisher != nil {
		event := eventbus.NewDocumentEvent(eventbus.EventTypeModelRegistered, t.Name(), cfg.CollectionName, 0, cfg)
		if err := r.publisher.Publish(ctx, event); err != nil {
			log.Warnf("Model registered event not delivered: %v", err)
		}
	}
	return res
}

// RegisterAll registers every sample concurrently. Failures are reported per type
// and never stop the others; results follow the order of samples.
func (r *Registry) RegisterAll(ctx context.Context, samples []interface{}, shared interface{}) []RegistrationResult {
	results := make([]RegistrationResult, len(samples))

	var g errgroup.Group
	for i, sample := range samples {
		i, sample := i, sample
		g.Go(func() error {
			results[i] = r.Register(ctx, sample, shared)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	r.logger.WithFields(map[string]interface{}{
		"registered": len(results) - failed,
		"failed":     failed,
	}).Info("Model registration finished")
	return results
}

// Lookup returns the current entry for t.
func (r *Registry) Lookup(t reflect.Type) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	return e, ok
}

// LookupByName finds an entry by model type name.
func (r *Registry) LookupByName(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Entries returns a snapshot of all entries sorted by model name.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Unregister drops the entry for t.
func (r *Registry) Unregister(t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, t)
}

func (r *Registry) publish(ctx context.Context, event eventbus.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.WithContext(ctx).Warnf("Event %s not delivered: %v", event.Type(), err)
	}
}
