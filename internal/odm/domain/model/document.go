package model

import "go.mongodb.org/mongo-driver/bson"

// Reserved field names.
const (
	// IDField is the ODM identity, an integer minted by the sequence generator.
	IDField = "id"
	// NativeIDField is the store's own document identifier.
	NativeIDField = "_id"
	// SequenceCollection holds one counter document per model collection.
	SequenceCollection = "id_sequences"
)

// Document is implemented by pointers to every persisted model type.
type Document interface {
	GetID() *int64
	SetID(id int64)
}

// Base carries the reserved integer identity. Embed it in model structs:
//
//	type User struct {
//		model.Base `bson:",inline"`
//		Email string `bson:"email" json:"email"`
//	}
type Base struct {
	ID *int64 `bson:"id,omitempty" json:"id,omitempty"`
}

// GetID returns the identity, nil when none has been allocated.
func (b *Base) GetID() *int64 { return b.ID }

// SetID assigns the identity.
func (b *Base) SetID(id int64) { b.ID = &id }

// HasID reports whether d carries an identity.
func HasID(d Document) bool {
	return d != nil && d.GetID() != nil
}

// Record is a projected document returned without constructing a model instance.
type Record = bson.M

// SequenceCounter is the stored shape of an id_sequences document.
type SequenceCounter struct {
	Key string `bson:"_id"`
	Seq int64  `bson:"seq"`
}
