package utils

import (
	"context"
	"errors"

	"mongodb-orm/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrModelNotFound      = errors.New("model not found in context")
	ErrModelNotString     = errors.New("model in context is not a string")
	ErrRequestIDNotFound  = errors.New("requestID not found in context")
	ErrRequestIDNotString = errors.New("requestID in context is not a string")
	ErrOperationNotFound  = errors.New("operation not found in context")
	ErrOperationNotString = errors.New("operation in context is not a string")
)

func stringFromContext(ctx context.Context, key interface{}, missing, notString error) (string, error) {
	val := ctx.Value(key)
	if val == nil {
		return "", missing
	}
	s, ok := val.(string)
	if !ok {
		return "", notString
	}
	return s, nil
}

// GetModelFromContext retrieves the model name from the context.
func GetModelFromContext(ctx context.Context) (string, error) {
	return stringFromContext(ctx, contextkeys.ModelKey, ErrModelNotFound, ErrModelNotString)
}

// GetRequestIDFromContext retrieves the request ID from the context.
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	return stringFromContext(ctx, contextkeys.RequestIDKey, ErrRequestIDNotFound, ErrRequestIDNotString)
}

// GetOperationFromContext retrieves the operation name from the context.
func GetOperationFromContext(ctx context.Context) (string, error) {
	return stringFromContext(ctx, contextkeys.OperationKey, ErrOperationNotFound, ErrOperationNotString)
}

// WithModelOperation tags ctx with the model, its collection and the running operation.
func WithModelOperation(ctx context.Context, model, collection, operation string) context.Context {
	ctx = context.WithValue(ctx, contextkeys.ModelKey, model)
	ctx = context.WithValue(ctx, contextkeys.CollectionKey, collection)
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}

// WithRequestID sets the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithComponent sets the component in the context.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextkeys.ComponentKey, component)
}
