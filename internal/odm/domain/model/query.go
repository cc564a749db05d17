package model

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Control keys recognized in a Query. Everything else is an equality/operator filter.
const (
	KeySortBy     = "sort_by"
	KeyDistinct   = "distinct"
	KeyOnlyCount  = "only_count"
	KeyProjection = "projection"
	KeyLimit      = "_limit"
	KeySkip       = "_skip"

	// KeyFlat lives inside the projection map.
	KeyFlat = "flat"
)

// ControlKeys lists the keys stripped from a Query before it reaches the store.
var ControlKeys = []string{KeySortBy, KeyDistinct, KeyOnlyCount, KeyProjection, KeyLimit, KeySkip}

// IsControlKey reports whether key is one of ControlKeys.
func IsControlKey(key string) bool {
	for _, k := range ControlKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Query is a loosely typed keyword filter plus optional control keys.
type Query map[string]interface{}

// Clone returns a shallow copy so translation never mutates the caller's map.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// ResultKind tags the shape of a Result.
type ResultKind int

const (
	// ResultInstances holds fully decoded model values.
	ResultInstances ResultKind = iota
	// ResultRecords holds projected documents as plain records.
	ResultRecords
	// ResultScalars holds bare values of a single field (flat projection or distinct).
	ResultScalars
	// ResultCount holds only a count.
	ResultCount
)

func (k ResultKind) String() string {
	switch k {
	case ResultInstances:
		return "instances"
	case ResultRecords:
		return "records"
	case ResultScalars:
		return "scalars"
	case ResultCount:
		return "count"
	default:
		return "unknown"
	}
}

// StoreQuery is a Query translated into store primitives.
type StoreQuery struct {
	Filter     bson.M
	Projection bson.M
	Sort       bson.D
	Limit      *int64
	Skip       *int64
	Distinct   string
	OnlyCount  bool
	Kind       ResultKind
	// FlatField is the field extracted when Kind is ResultScalars from a flat projection.
	FlatField string
}

// Result is the tagged outcome of a filter. Only the slice matching Kind is populated.
type Result[T any] struct {
	Kind      ResultKind    `json:"kind"`
	Instances []*T          `json:"instances,omitempty"`
	Records   []Record      `json:"records,omitempty"`
	Scalars   []interface{} `json:"scalars,omitempty"`
	Count     int64         `json:"count"`
}

// Len returns the number of items of the populated kind, or Count for ResultCount.
func (r *Result[T]) Len() int {
	switch r.Kind {
	case ResultInstances:
		return len(r.Instances)
	case ResultRecords:
		return len(r.Records)
	case ResultScalars:
		return len(r.Scalars)
	default:
		return int(r.Count)
	}
}

// MarshalText renders the kind by name in JSON responses.
func (k ResultKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind rendered by MarshalText.
func (k *ResultKind) UnmarshalText(text []byte) error {
	for _, kind := range []ResultKind{ResultInstances, ResultRecords, ResultScalars, ResultCount} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown result kind %q", text)
}
