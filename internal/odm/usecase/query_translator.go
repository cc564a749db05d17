package usecase

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/shared/errors"

	"go.mongodb.org/mongo-driver/bson"
)

// QueryTranslator turns a loose keyword Query into a StoreQuery.
type QueryTranslator struct{}

// NewQueryTranslator creates a translator.
func NewQueryTranslator() *QueryTranslator {
	return &QueryTranslator{}
}

// DefaultSort orders results by ascending identity.
func DefaultSort() bson.D {
	return bson.D{{Key: model.IDField, Value: 1}}
}

// Translate strips control keys from q and decides the result shape.
// The caller's map is never modified.
func (t *QueryTranslator) Translate(q model.Query) (*model.StoreQuery, error) {
	filter := bson.M{}
	for k, v := range q {
		if !model.IsControlKey(k) {
			filter[k] = v
		}
	}

	sq := &model.StoreQuery{Filter: filter}

	projection, flat, err := parseProjection(q[model.KeyProjection])
	if err != nil {
		return nil, err
	}
	sq.Projection = projection

	if raw, ok := q[model.KeyDistinct]; ok && raw != nil {
		field, ok := raw.(string)
		if !ok || field == "" {
			return nil, errors.NewInvalidQueryError("distinct must be a non-empty field name").
				WithDetail("value", raw)
		}
		sq.Distinct = field
	}

	onlyCount, err := parseBool(q, model.KeyOnlyCount)
	if err != nil {
		return nil, err
	}
	sq.OnlyCount = onlyCount

	switch {
	case sq.Distinct != "" && sq.OnlyCount:
		sq.Kind = model.ResultCount
		return sq, nil
	case sq.Distinct != "":
		sq.Kind = model.ResultScalars
		return sq, nil
	case sq.OnlyCount:
		sq.Kind = model.ResultCount
		return sq, nil
	}

	if sq.Limit, err = parseCount(q, model.KeyLimit); err != nil {
		return nil, err
	}
	if sq.Skip, err = parseCount(q, model.KeySkip); err != nil {
		return nil, err
	}

	if raw, ok := q[model.KeySortBy]; ok {
		sq.Sort, err = parseSort(raw)
		if err != nil {
			return nil, err
		}
	} else {
		sq.Sort = DefaultSort()
	}

	included := includedFields(projection)
	switch {
	case flat && len(included) == 0 && truthy(projection[model.IDField]):
		sq.Kind = model.ResultScalars
		sq.FlatField = model.IDField
	case flat:
		if len(included) != 1 {
			return nil, errors.NewInvalidQueryError("flat projection requires exactly one field besides id").
				WithDetail("fields", included)
		}
		sq.Kind = model.ResultScalars
		sq.FlatField = included[0]
	case len(included) == 0 && !hasExclusions(projection):
		// Nothing beyond the identity was asked for: fetch whole documents.
		sq.Kind = model.ResultInstances
		sq.Projection = bson.M{model.NativeIDField: 0}
	default:
		sq.Kind = model.ResultRecords
	}

	return sq, nil
}

// parseProjection normalizes the projection control value and pulls out the flat flag.
// The store-native _id is always excluded unless the caller says otherwise.
func parseProjection(raw interface{}) (bson.M, bool, error) {
	projection := bson.M{}
	flat := false

	switch p := raw.(type) {
	case nil:
	case bson.M:
		for k, v := range p {
			projection[k] = v
		}
	case map[string]interface{}:
		for k, v := range p {
			projection[k] = v
		}
	case model.Query:
		for k, v := range p {
			projection[k] = v
		}
	case map[string]bool:
		for k, v := range p {
			projection[k] = v
		}
	case map[string]int:
		for k, v := range p {
			projection[k] = v
		}
	case bson.D:
		for _, e := range p {
			projection[e.Key] = e.Value
		}
	case []string:
		for _, f := range p {
			projection[f] = 1
		}
	case string:
		for _, f := range splitFields(p) {
			projection[f] = 1
		}
	default:
		return nil, false, errors.NewInvalidQueryError(fmt.Sprintf("unsupported projection type %T", raw))
	}

	if v, ok := projection[model.KeyFlat]; ok {
		flat = truthy(v)
		delete(projection, model.KeyFlat)
	}
	if _, ok := projection[model.NativeIDField]; !ok {
		projection[model.NativeIDField] = 0
	}
	return projection, flat, nil
}

// includedFields lists included fields other than the identities, sorted for stable errors.
func includedFields(projection bson.M) []string {
	var out []string
	for k, v := range projection {
		if k == model.IDField || k == model.NativeIDField {
			continue
		}
		if truthy(v) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func hasExclusions(projection bson.M) bool {
	for k, v := range projection {
		if k != model.NativeIDField && !truthy(v) {
			return true
		}
	}
	return false
}

// parseSort accepts bson.D (ordered), maps (keys sorted) and "a,-b" strings.
// nil or empty input disables sorting.
func parseSort(raw interface{}) (bson.D, error) {
	switch s := raw.(type) {
	case nil:
		return nil, nil
	case bson.D:
		if len(s) == 0 {
			return nil, nil
		}
		out := make(bson.D, 0, len(s))
		for _, e := range s {
			dir, err := direction(e.Key, e.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: e.Key, Value: dir})
		}
		return out, nil
	case bson.M:
		return sortFromMap(s)
	case map[string]interface{}:
		return sortFromMap(s)
	case model.Query:
		return sortFromMap(s)
	case map[string]int:
		m := make(map[string]interface{}, len(s))
		for k, v := range s {
			m[k] = v
		}
		return sortFromMap(m)
	case string:
		var out bson.D
		for _, f := range splitFields(s) {
			if strings.HasPrefix(f, "-") {
				out = append(out, bson.E{Key: strings.TrimPrefix(f, "-"), Value: -1})
			} else {
				out = append(out, bson.E{Key: strings.TrimPrefix(f, "+"), Value: 1})
			}
		}
		return out, nil
	default:
		return nil, errors.NewInvalidQueryError(fmt.Sprintf("unsupported sort_by type %T", raw))
	}
}

func sortFromMap(m map[string]interface{}) (bson.D, error) {
	if len(m) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		dir, err := direction(k, m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: k, Value: dir})
	}
	return out, nil
}

func direction(field string, v interface{}) (int, error) {
	n, ok := toInt64(v)
	if !ok {
		if s, isStr := v.(string); isStr {
			switch strings.ToLower(s) {
			case "asc", "ascending":
				return 1, nil
			case "desc", "descending":
				return -1, nil
			}
		}
		return 0, errors.NewInvalidQueryError(fmt.Sprintf("invalid sort direction for %s", field)).
			WithDetail("value", v)
	}
	switch {
	case n > 0:
		return 1, nil
	case n < 0:
		return -1, nil
	default:
		return 0, errors.NewInvalidQueryError(fmt.Sprintf("sort direction for %s cannot be zero", field))
	}
}

// parseCount reads a non-negative _limit/_skip. Absent or nil means unset.
func parseCount(q model.Query, key string) (*int64, error) {
	raw, ok := q[key]
	if !ok || raw == nil {
		return nil, nil
	}
	n, ok := toInt64(raw)
	if !ok {
		if s, isStr := raw.(string); isStr {
			parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err == nil {
				n, ok = parsed, true
			}
		}
	}
	if !ok || n < 0 {
		return nil, errors.NewInvalidQueryError(fmt.Sprintf("%s must be a non-negative integer", key)).
			WithDetail("value", raw)
	}
	return &n, nil
}

func parseBool(q model.Query, key string) (bool, error) {
	raw, ok := q[key]
	if !ok || raw == nil {
		return false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, errors.NewInvalidQueryError(fmt.Sprintf("%s must be a boolean", key)).
				WithDetail("value", raw)
		}
		return b, nil
	default:
		if n, ok := toInt64(raw); ok {
			return n != 0, nil
		}
		return false, errors.NewInvalidQueryError(fmt.Sprintf("%s must be a boolean", key)).
			WithDetail("value", raw)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float32:
		if float32(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case float64:
		if float64(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err == nil {
			return parsed
		}
		return b != "" && b != "0"
	case nil:
		return false
	}
	if n, ok := toInt64(v); ok {
		return n != 0
	}
	return true
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
