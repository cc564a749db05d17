package contextkeys

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "mongodb-orm context key " + string(c)
}

const (
	// ModelKey carries the name of the model an operation runs against.
	ModelKey = contextKey("model")
	// CollectionKey carries the resolved collection name.
	CollectionKey = contextKey("collection")
	// OperationKey carries the CRUD operation name (get, filter, create...).
	OperationKey = contextKey("operation")
	// RequestIDKey is set by the HTTP middleware.
	RequestIDKey = contextKey("requestID")
	// ComponentKey names the emitting component for log correlation.
	ComponentKey = contextKey("component")
)
