package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mongodb-orm/internal/shared/logger"
)

// Event represents a generic event
type Event interface {
	Type() string
	Data() interface{}
	Timestamp() time.Time
	Source() string
}

// Handler defines the event handler function type
type Handler func(ctx context.Context, event Event) error

// Publisher is the write side of the bus, as used by the model layer.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventBus is an in-memory, type-keyed publish/subscribe bus.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   logger.Logger
	config   BusConfig
}

// BusConfig holds configuration for the event bus
type BusConfig struct {
	AsyncProcessing bool
	MaxRetries      int
	RetryDelay      time.Duration
}

// DefaultBusConfig runs handlers synchronously, once.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		AsyncProcessing: false,
		MaxRetries:      0,
		RetryDelay:      100 * time.Millisecond,
	}
}

// NewEventBus creates a new event bus instance
func NewEventBus(log logger.Logger) *EventBus {
	return NewEventBusWithConfig(log, DefaultBusConfig())
}

// NewEventBusWithConfig creates a new event bus with custom configuration
func NewEventBusWithConfig(log logger.Logger, config BusConfig) *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
		logger:   logger.OrNop(log),
		config:   config,
	}
}

// Subscribe adds a handler for a specific event type
func (eb *EventBus) Subscribe(eventType string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.logger.Debugf("Subscribed handler for event type: %s", eventType)
}

// Publish sends an event to all registered handlers
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	handlers := append([]Handler(nil), eb.handlers[event.Type()]...)
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	if eb.config.AsyncProcessing {
		return eb.publishAsync(ctx, event, handlers)
	}
	for i, handler := range handlers {
		if err := eb.executeHandler(ctx, event, handler, i); err != nil {
			return err
		}
	}
	return nil
}

func (eb *EventBus) publishAsync(ctx context.Context, event Event, handlers []Handler) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(handlers))

	for i, handler := range handlers {
		wg.Add(1)
		go func(h Handler, idx int) {
			defer wg.Done()
			if err := eb.executeHandler(ctx, event, h, idx); err != nil {
				errCh <- err
			}
		}(handler, i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (eb *EventBus) executeHandler(ctx context.Context, event Event, handler Handler, handlerIndex int) error {
	var lastErr error

	for attempt := 0; attempt <= eb.config.MaxRetries; attempt++ {
		if attempt > 0 {
			eb.logger.Warnf("Retrying handler %d for event %s (attempt %d/%d)",
				handlerIndex, event.Type(), attempt+1, eb.config.MaxRetries+1)
			time.Sleep(eb.config.RetryDelay)
		}

		if err := handler(ctx, event); err != nil {
			lastErr = err
			eb.logger.Errorf("Handler %d failed for event %s: %v", handlerIndex, event.Type(), err)
			continue
		}
		return nil
	}

	return fmt.Errorf("handler failed after %d attempts: %w", eb.config.MaxRetries+1, lastErr)
}

// Document lifecycle event types
const (
	EventTypeDocumentCreated = "document.created"
	EventTypeDocumentSaved   = "document.saved"
	EventTypeDocumentDeleted = "document.deleted"
	EventTypeModelRegistered = "model.registered"
)

// DocumentEvent is published by the model layer after a successful write.
type DocumentEvent struct {
	EventType  string
	Model      string
	Collection string
	ID         int64
	Document   interface{}
	OccurredAt time.Time
}

// NewDocumentEvent stamps a lifecycle event with the current time.
func NewDocumentEvent(eventType, model, collection string, id int64, doc interface{}) *DocumentEvent {
	return &DocumentEvent{
		EventType:  eventType,
		Model:      model,
		Collection: collection,
		ID:         id,
		Document:   doc,
		OccurredAt: time.Now(),
	}
}

func (e *DocumentEvent) Type() string         { return e.EventType }
func (e *DocumentEvent) Data() interface{}    { return e.Document }
func (e *DocumentEvent) Timestamp() time.Time { return e.OccurredAt }
func (e *DocumentEvent) Source() string       { return e.Collection }
