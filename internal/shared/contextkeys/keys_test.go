package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKey_String(t *testing.T) {
	key := contextKey("testKey")
	assert.Equal(t, "mongodb-orm context key testKey", key.String())
}

func TestContextKeys_Usage(t *testing.T) {
	ctx := context.Background()
	ctx = context.WithValue(ctx, ModelKey, "User")
	ctx = context.WithValue(ctx, CollectionKey, "users")
	ctx = context.WithValue(ctx, OperationKey, "create")
	ctx = context.WithValue(ctx, RequestIDKey, "req-456")
	ctx = context.WithValue(ctx, ComponentKey, "registry")

	assert.Equal(t, "User", ctx.Value(ModelKey))
	assert.Equal(t, "users", ctx.Value(CollectionKey))
	assert.Equal(t, "create", ctx.Value(OperationKey))
	assert.Equal(t, "req-456", ctx.Value(RequestIDKey))
	assert.Equal(t, "registry", ctx.Value(ComponentKey))
}

func TestContextKeys_Distinct(t *testing.T) {
	ctx := context.WithValue(context.Background(), ModelKey, "User")
	assert.Nil(t, ctx.Value(CollectionKey))
	assert.Nil(t, ctx.Value(contextKey("other")))
}
