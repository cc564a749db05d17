package model

import (
	"fmt"
	"strings"
)

// IndexDirection is the sort order of one index key.
type IndexDirection int

const (
	Ascending  IndexDirection = 1
	Descending IndexDirection = -1
)

// IndexKey is one field of an index, in declaration order.
type IndexKey struct {
	Field     string
	Direction IndexDirection
}

// Validate rejects empty field names and unknown directions.
func (k IndexKey) Validate() error {
	if k.Field == "" {
		return fmt.Errorf("index field cannot be empty")
	}
	if k.Direction != Ascending && k.Direction != Descending {
		return fmt.Errorf("invalid direction %d for index field %s", k.Direction, k.Field)
	}
	return nil
}

// KeySignature renders keys the way MongoDB names default indexes: field_1_other_-1.
func KeySignature(keys []IndexKey) string {
	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, k.Field, fmt.Sprint(int(k.Direction)))
	}
	return strings.Join(parts, "_")
}
