// Package testutil provides an in-memory repository.Collection for exercising
// the ODM without a running MongoDB.
package testutil

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"mongodb-orm/internal/odm/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MemoryCollection stores documents as bson.M in insertion order.
// It understands the subset of query and update operators the ODM issues.
type MemoryCollection struct {
	name    string
	docs    []bson.M
	indexes []repository.IndexSpec
	mu      sync.Mutex

	// FailWith, when set, is returned by every operation.
	FailWith error
	// Calls counts operations by method name.
	Calls map[string]int
}

// NewMemoryCollection creates an empty collection carrying the default _id index.
func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{
		name: name,
		indexes: []repository.IndexSpec{
			{Name: "_id_", Keys: bson.D{{Key: "_id", Value: int32(1)}}},
		},
		Calls: make(map[string]int),
	}
}

var _ repository.Collection = (*MemoryCollection)(nil)

func (m *MemoryCollection) Name() string { return m.name }

// Docs returns a copy of the stored documents.
func (m *MemoryCollection) Docs() []bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bson.M, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, copyDoc(d))
	}
	return out
}

// CallCount returns how many times method was invoked.
func (m *MemoryCollection) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

func (m *MemoryCollection) enter(method string) error {
	m.Calls[method]++
	return m.FailWith
}

func (m *MemoryCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) repository.SingleResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindOne"); err != nil {
		return &memorySingleResult{err: err}
	}

	f, err := toM(filter)
	if err != nil {
		return &memorySingleResult{err: err}
	}
	var projection, sortSpec interface{}
	var skip int64
	for _, o := range opts {
		if o == nil {
			continue
		}
		if o.Projection != nil {
			projection = o.Projection
		}
		if o.Sort != nil {
			sortSpec = o.Sort
		}
		if o.Skip != nil {
			skip = *o.Skip
		}
	}

	matched, err := m.match(f)
	if err != nil {
		return &memorySingleResult{err: err}
	}
	if err := sortDocs(matched, sortSpec); err != nil {
		return &memorySingleResult{err: err}
	}
	if skip >= int64(len(matched)) {
		return &memorySingleResult{err: mongo.ErrNoDocuments}
	}
	doc, err := project(matched[skip], projection)
	if err != nil {
		return &memorySingleResult{err: err}
	}
	return &memorySingleResult{doc: doc}
}

func (m *MemoryCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (repository.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Find"); err != nil {
		return nil, err
	}

	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	merged := options.MergeFindOptions(opts...)

	matched, err := m.match(f)
	if err != nil {
		return nil, err
	}
	if err := sortDocs(matched, merged.Sort); err != nil {
		return nil, err
	}
	if merged.Skip != nil {
		if *merged.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[*merged.Skip:]
		}
	}
	if merged.Limit != nil && *merged.Limit > 0 && *merged.Limit < int64(len(matched)) {
		matched = matched[:*merged.Limit]
	}

	out := make([]bson.M, 0, len(matched))
	for _, d := range matched {
		p, err := project(d, merged.Projection)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return NewMemoryCursor(out), nil
}

func (m *MemoryCollection) InsertOne(ctx context.Context, doc interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("InsertOne"); err != nil {
		return nil, err
	}

	d, err := toM(doc)
	if err != nil {
		return nil, err
	}
	if _, ok := d["_id"]; !ok {
		d["_id"] = primitive.NewObjectID()
	}
	if err := m.checkUnique(d, -1); err != nil {
		return nil, err
	}
	m.docs = append(m.docs, d)
	return d["_id"], nil
}

func (m *MemoryCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*repository.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateOne"); err != nil {
		return nil, err
	}

	upsert := false
	for _, o := range opts {
		if o != nil && o.Upsert != nil {
			upsert = *o.Upsert
		}
	}

	_, matched, upsertedID, err := m.updateOne(filter, update, upsert)
	if err != nil {
		return nil, err
	}
	res := &repository.UpdateResult{UpsertedID: upsertedID}
	if matched {
		res.MatchedCount = 1
		res.ModifiedCount = 1
	}
	return res, nil
}

func (m *MemoryCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) repository.SingleResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindOneAndUpdate"); err != nil {
		return &memorySingleResult{err: err}
	}

	merged := options.MergeFindOneAndUpdateOptions(opts...)
	upsert := merged.Upsert != nil && *merged.Upsert
	after := merged.ReturnDocument != nil && *merged.ReturnDocument == options.After

	before := bson.M(nil)
	f, err := toM(filter)
	if err != nil {
		return &memorySingleResult{err: err}
	}
	if found, err := m.match(f); err != nil {
		return &memorySingleResult{err: err}
	} else if len(found) > 0 {
		before = copyDoc(found[0])
	}

	idx, _, _, err := m.updateOne(f, update, upsert)
	if err != nil {
		return &memorySingleResult{err: err}
	}
	if after {
		if idx < 0 {
			return &memorySingleResult{err: mongo.ErrNoDocuments}
		}
		return &memorySingleResult{doc: copyDoc(m.docs[idx])}
	}
	if before == nil {
		return &memorySingleResult{err: mongo.ErrNoDocuments}
	}
	return &memorySingleResult{doc: before}
}

// updateOne applies update to the first match and returns the stored index, or -1.
func (m *MemoryCollection) updateOne(filter interface{}, update interface{}, upsert bool) (int, bool, interface{}, error) {
	f, err := toM(filter)
	if err != nil {
		return -1, false, nil, err
	}
	u, err := toM(update)
	if err != nil {
		return -1, false, nil, err
	}

	for i, d := range m.docs {
		ok, err := matches(d, f)
		if err != nil {
			return -1, false, nil, err
		}
		if !ok {
			continue
		}
		updated := copyDoc(d)
		if err := applyUpdate(updated, u); err != nil {
			return -1, false, nil, err
		}
		if err := m.checkUnique(updated, i); err != nil {
			return -1, false, nil, err
		}
		m.docs[i] = updated
		return i, true, nil, nil
	}

	if !upsert {
		return -1, false, nil, nil
	}

	doc := bson.M{}
	for k, v := range f {
		if !strings.HasPrefix(k, "$") && !isOperatorDoc(v) {
			doc[k] = v
		}
	}
	if err := applyUpdate(doc, u); err != nil {
		return -1, false, nil, err
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	if err := m.checkUnique(doc, -1); err != nil {
		return -1, false, nil, err
	}
	m.docs = append(m.docs, doc)
	return len(m.docs) - 1, false, doc["_id"], nil
}

func (m *MemoryCollection) DeleteOne(ctx context.Context, filter interface{}) (int64, error) {
	return m.delete("DeleteOne", filter, 1)
}

func (m *MemoryCollection) DeleteMany(ctx context.Context, filter interface{}) (int64, error) {
	return m.delete("DeleteMany", filter, -1)
}

func (m *MemoryCollection) delete(method string, filter interface{}, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(method); err != nil {
		return 0, err
	}

	f, err := toM(filter)
	if err != nil {
		return 0, err
	}
	var deleted int64
	kept := m.docs[:0]
	for _, d := range m.docs {
		ok, err := matches(d, f)
		if err != nil {
			return 0, err
		}
		if ok && (limit < 0 || deleted < int64(limit)) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	m.docs = kept
	return deleted, nil
}

func (m *MemoryCollection) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountDocuments"); err != nil {
		return 0, err
	}
	f, err := toM(filter)
	if err != nil {
		return 0, err
	}
	matched, err := m.match(f)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (m *MemoryCollection) Distinct(ctx context.Context, field string, filter interface{}) ([]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Distinct"); err != nil {
		return nil, err
	}
	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	matched, err := m.match(f)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	for _, d := range matched {
		v, ok := lookup(d, field)
		if !ok {
			continue
		}
		values := []interface{}{v}
		if arr, isArr := v.(primitive.A); isArr {
			values = arr
		}
		for _, candidate := range values {
			dup := false
			for _, existing := range out {
				if equalValues(existing, candidate) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, candidate)
			}
		}
	}
	return out, nil
}

// Aggregate supports $match, $sort, $skip, $limit, $project and $count stages.
func (m *MemoryCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (repository.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Aggregate"); err != nil {
		return nil, err
	}

	stages, err := toStages(pipeline)
	if err != nil {
		return nil, err
	}

	docs := make([]bson.M, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, copyDoc(d))
	}

	for _, stage := range stages {
		for op, arg := range stage {
			switch op {
			case "$match":
				f, err := toM(arg)
				if err != nil {
					return nil, err
				}
				kept := docs[:0]
				for _, d := range docs {
					ok, err := matches(d, f)
					if err != nil {
						return nil, err
					}
					if ok {
						kept = append(kept, d)
					}
				}
				docs = kept
			case "$sort":
				if err := sortDocs(docs, arg); err != nil {
					return nil, err
				}
			case "$skip":
				n, _ := toFloat(arg)
				if int(n) >= len(docs) {
					docs = nil
				} else {
					docs = docs[int(n):]
				}
			case "$limit":
				n, _ := toFloat(arg)
				if int(n) < len(docs) {
					docs = docs[:int(n)]
				}
			case "$project":
				projected := make([]bson.M, 0, len(docs))
				for _, d := range docs {
					p, err := project(d, arg)
					if err != nil {
						return nil, err
					}
					projected = append(projected, p)
				}
				docs = projected
			case "$count":
				name, _ := arg.(string)
				if len(docs) == 0 {
					docs = nil
				} else {
					docs = []bson.M{{name: int32(len(docs))}}
				}
			default:
				return nil, fmt.Errorf("unsupported aggregation stage %s", op)
			}
		}
	}
	return NewMemoryCursor(docs), nil
}

// Indexes returns a view over the collection's index list.
func (m *MemoryCollection) Indexes() repository.IndexView {
	return &memoryIndexView{col: m}
}

func (m *MemoryCollection) match(filter bson.M) ([]bson.M, error) {
	var out []bson.M
	for _, d := range m.docs {
		ok, err := matches(d, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// checkUnique enforces unique indexes against every document except skip.
func (m *MemoryCollection) checkUnique(doc bson.M, skip int) error {
	for _, idx := range m.indexes {
		if !idx.Unique {
			continue
		}
		for i, other := range m.docs {
			if i == skip {
				continue
			}
			same := true
			for _, k := range idx.Keys {
				a, _ := lookup(doc, k.Key)
				b, _ := lookup(other, k.Key)
				if !equalValues(a, b) {
					same = false
					break
				}
			}
			if same {
				return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
					Code:    11000,
					Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: %s", m.name, idx.Name),
				}}}
			}
		}
	}
	return nil
}

type memoryIndexView struct {
	col *MemoryCollection
}

func (v *memoryIndexView) ListSpecifications(ctx context.Context) ([]repository.IndexSpec, error) {
	v.col.mu.Lock()
	defer v.col.mu.Unlock()
	if err := v.col.enter("ListSpecifications"); err != nil {
		return nil, err
	}
	out := make([]repository.IndexSpec, len(v.col.indexes))
	copy(out, v.col.indexes)
	return out, nil
}

func (v *memoryIndexView) CreateOne(ctx context.Context, im mongo.IndexModel) (string, error) {
	v.col.mu.Lock()
	defer v.col.mu.Unlock()
	if err := v.col.enter("CreateOne"); err != nil {
		return "", err
	}

	keys, ok := im.Keys.(bson.D)
	if !ok {
		return "", fmt.Errorf("index keys must be bson.D, got %T", im.Keys)
	}
	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, k.Key, fmt.Sprint(k.Value))
	}
	spec := repository.IndexSpec{Name: strings.Join(parts, "_"), Keys: keys}
	if im.Options != nil {
		if im.Options.Name != nil {
			spec.Name = *im.Options.Name
		}
		spec.Unique = im.Options.Unique != nil && *im.Options.Unique
	}
	for _, existing := range v.col.indexes {
		if existing.Name == spec.Name {
			return spec.Name, nil
		}
	}
	v.col.indexes = append(v.col.indexes, spec)
	return spec.Name, nil
}

type memorySingleResult struct {
	doc bson.M
	err error
}

func (r *memorySingleResult) Decode(v interface{}) error {
	if r.err != nil {
		return r.err
	}
	return decodeInto(r.doc, v)
}

// MemoryCursor iterates over a fixed slice of documents.
type MemoryCursor struct {
	docs []bson.M
	pos  int
	cur  bson.M
}

// NewMemoryCursor wraps docs.
func NewMemoryCursor(docs []bson.M) *MemoryCursor {
	return &MemoryCursor{docs: docs}
}

func (c *MemoryCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.cur = c.docs[c.pos]
	c.pos++
	return true
}

func (c *MemoryCursor) Decode(val interface{}) error {
	if c.cur == nil {
		return fmt.Errorf("cursor is not positioned on a document")
	}
	return decodeInto(c.cur, val)
}

func (c *MemoryCursor) Close(ctx context.Context) error { return nil }
func (c *MemoryCursor) Err() error                      { return nil }

func decodeInto(doc bson.M, v interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

// toM normalizes any BSON-marshalable value into bson.M. A nil filter matches everything.
func toM(v interface{}) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	out := bson.M{}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toD(v interface{}) (bson.D, error) {
	if d, ok := v.(bson.D); ok {
		return d, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	var out bson.D
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toStages(pipeline interface{}) ([]bson.M, error) {
	rv := reflect.ValueOf(pipeline)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("pipeline must be a slice, got %T", pipeline)
	}
	out := make([]bson.M, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		stage, err := toM(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out = append(out, stage)
	}
	return out, nil
}

func copyDoc(d bson.M) bson.M {
	out, err := toM(d)
	if err != nil {
		return bson.M{}
	}
	return out
}

func lookup(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(bson.M)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func set(doc bson.M, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(bson.M)
		if !ok {
			next = bson.M{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

func unset(doc bson.M, path string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(bson.M)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

func isOperatorDoc(v interface{}) bool {
	m, ok := v.(bson.M)
	if !ok || len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func applyUpdate(doc bson.M, update bson.M) error {
	for op, arg := range update {
		fields, ok := arg.(bson.M)
		if !ok {
			return fmt.Errorf("update operator %s requires a document", op)
		}
		switch op {
		case "$set":
			for k, v := range fields {
				set(doc, k, v)
			}
		case "$setOnInsert":
			for k, v := range fields {
				if _, exists := lookup(doc, k); !exists {
					set(doc, k, v)
				}
			}
		case "$unset":
			for k := range fields {
				unset(doc, k)
			}
		case "$inc":
			for k, v := range fields {
				cur, exists := lookup(doc, k)
				if !exists {
					set(doc, k, v)
					continue
				}
				sum, err := addNumbers(cur, v)
				if err != nil {
					return fmt.Errorf("cannot $inc field %s: %w", k, err)
				}
				set(doc, k, sum)
			}
		case "$max":
			for k, v := range fields {
				cur, exists := lookup(doc, k)
				if c, ok := compareValues(v, cur); !exists || (ok && c > 0) {
					set(doc, k, v)
				}
			}
		default:
			return fmt.Errorf("unsupported update operator %s", op)
		}
	}
	return nil
}

func addNumbers(a, b interface{}) (interface{}, error) {
	switch x := a.(type) {
	case int32:
		if y, ok := b.(int32); ok {
			return x + y, nil
		}
	case int64:
		switch y := b.(type) {
		case int64:
			return x + y, nil
		case int32:
			return x + int64(y), nil
		}
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if !okA || !okB {
		return nil, fmt.Errorf("non-numeric operands %T and %T", a, b)
	}
	return fa + fb, nil
}

func matches(doc bson.M, filter bson.M) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or", "$nor":
			clauses, ok := cond.(primitive.A)
			if !ok {
				return false, fmt.Errorf("%s requires an array", key)
			}
			results := make([]bool, 0, len(clauses))
			for _, c := range clauses {
				cm, ok := c.(bson.M)
				if !ok {
					return false, fmt.Errorf("%s clause must be a document", key)
				}
				r, err := matches(doc, cm)
				if err != nil {
					return false, err
				}
				results = append(results, r)
			}
			if !combine(key, results) {
				return false, nil
			}
			continue
		}

		value, exists := lookup(doc, key)
		if isOperatorDoc(cond) {
			for op, arg := range cond.(bson.M) {
				ok, err := evalOperator(op, value, exists, arg)
				if err != nil {
					return false, err
				}
				if !ok {
					return false, nil
				}
			}
			continue
		}
		if !exists {
			if cond != nil {
				return false, nil
			}
			continue
		}
		if !equalOrContains(value, cond) {
			return false, nil
		}
	}
	return true, nil
}

func combine(op string, results []bool) bool {
	switch op {
	case "$and":
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	case "$or":
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	default:
		for _, r := range results {
			if r {
				return false
			}
		}
		return true
	}
}

func evalOperator(op string, value interface{}, exists bool, arg interface{}) (bool, error) {
	switch op {
	case "$eq":
		return exists && equalOrContains(value, arg), nil
	case "$ne":
		return !exists || !equalOrContains(value, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false, nil
		}
		c, ok := compareValues(value, arg)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "$in", "$nin":
		arr, ok := arg.(primitive.A)
		if !ok {
			return false, fmt.Errorf("%s requires an array", op)
		}
		found := false
		for _, candidate := range arr {
			if exists && equalOrContains(value, candidate) {
				found = true
				break
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$exists":
		want, _ := arg.(bool)
		return exists == want, nil
	default:
		return false, fmt.Errorf("unsupported query operator %s", op)
	}
}

func equalOrContains(value, want interface{}) bool {
	if equalValues(value, want) {
		return true
	}
	if arr, ok := value.(primitive.A); ok {
		for _, v := range arr {
			if equalValues(v, want) {
				return true
			}
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func equalValues(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders numbers and strings; mixed or unsupported types are incomparable.
func compareValues(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// sortRank places missing values first, then numbers, then strings, like MongoDB.
func sortRank(v interface{}, exists bool) int {
	if !exists || v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	if _, ok := v.(string); ok {
		return 2
	}
	return 3
}

func sortDocs(docs []bson.M, spec interface{}) error {
	if spec == nil {
		return nil
	}
	keys, err := toD(spec)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			dir, _ := toFloat(k.Value)
			a, aok := lookup(docs[i], k.Key)
			b, bok := lookup(docs[j], k.Key)
			ra, rb := sortRank(a, aok), sortRank(b, bok)
			c := 0
			switch {
			case ra != rb:
				c = ra - rb
			default:
				c, _ = compareValues(a, b)
			}
			if c == 0 {
				continue
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

func truthy(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return v != nil
}

// project applies an inclusion or exclusion projection. _id is included unless excluded.
func project(doc bson.M, projection interface{}) (bson.M, error) {
	out := copyDoc(doc)
	if projection == nil {
		return out, nil
	}
	p, err := toM(projection)
	if err != nil {
		return nil, err
	}
	if len(p) == 0 {
		return out, nil
	}

	inclusion := false
	for k, v := range p {
		if k != "_id" && truthy(v) {
			inclusion = true
			break
		}
	}

	if inclusion {
		projected := bson.M{}
		for k, v := range p {
			if k == "_id" || !truthy(v) {
				continue
			}
			if val, ok := lookup(out, k); ok {
				set(projected, k, val)
			}
		}
		if idVal, ok := out["_id"]; ok {
			if include, listed := p["_id"]; !listed || truthy(include) {
				projected["_id"] = idVal
			}
		}
		return projected, nil
	}

	for k, v := range p {
		if !truthy(v) {
			unset(out, k)
		}
	}
	return out, nil
}
