package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/shared/errors"
	"mongodb-orm/internal/shared/eventbus"
	"mongodb-orm/internal/shared/logger"
	"mongodb-orm/internal/shared/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Model is the CRUD surface for one model type T. PT is *T and must implement
// model.Document, which in practice means T embeds model.Base.
//
// A Model holds no handles of its own: every call looks up the current registry
// entry, so re-registering T takes effect immediately.
type Model[T any, PT interface {
	*T
	model.Document
}] struct {
	registry   *Registry
	translator *QueryTranslator
	typ        reflect.Type
}

// NewModel returns the model for T backed by r. T must be registered before use.
func NewModel[T any, PT interface {
	*T
	model.Document
}](r *Registry) *Model[T, PT] {
	return &Model[T, PT]{
		registry:   r,
		translator: NewQueryTranslator(),
		typ:        reflect.TypeOf((*T)(nil)).Elem(),
	}
}

// Bind registers T with r and returns its model along with the registration outcome.
func Bind[T any, PT interface {
	*T
	model.Document
}](ctx context.Context, r *Registry, shared interface{}) (*Model[T, PT], RegistrationResult) {
	res := r.Register(ctx, new(T), shared)
	return NewModel[T, PT](r), res
}

// ModelName returns the Go type name of T.
func (m *Model[T, PT]) ModelName() string {
	return m.typ.Name()
}

// Entry returns the current registry entry for T.
func (m *Model[T, PT]) Entry() (*Entry, error) {
	e, ok := m.registry.Lookup(m.typ)
	if !ok {
		return nil, errors.NewConfigurationError(fmt.Sprintf("model %s is not registered", m.typ.Name())).
			WithCause(errors.ErrModelNotRegistered)
	}
	return e, nil
}

func (m *Model[T, PT]) begin(ctx context.Context, op string) (context.Context, *Entry, logger.Logger, error) {
	e, err := m.Entry()
	if err != nil {
		return ctx, nil, nil, err
	}
	ctx = utils.WithModelOperation(ctx, e.Name, e.Config.CollectionName, op)
	return ctx, e, m.registry.logger.WithContext(ctx), nil
}

// Get returns the first document matching filter in store order, or nil.
// Control keys in filter are ignored.
func (m *Model[T, PT]) Get(ctx context.Context, filter model.Query) (*T, error) {
	ctx, e, _, err := m.begin(ctx, "get")
	if err != nil {
		return nil, err
	}
	return m.findOne(ctx, e, plainFilter(filter))
}

func (m *Model[T, PT]) findOne(ctx context.Context, e *Entry, filter bson.M) (*T, error) {
	opts := options.FindOne().SetProjection(bson.M{model.NativeIDField: 0})

	doc := new(T)
	if err := e.Collection().FindOne(ctx, filter, opts).Decode(doc); err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", e.Name, err)
	}
	return doc, nil
}

// Filter runs q and returns a result shaped by its control keys.
func (m *Model[T, PT]) Filter(ctx context.Context, q model.Query) (*model.Result[T], error) {
	ctx, e, log, err := m.begin(ctx, "filter")
	if err != nil {
		return nil, err
	}

	sq, err := m.translator.Translate(q)
	if err != nil {
		return nil, err
	}
	col := e.Collection()
	res := &model.Result[T]{Kind: sq.Kind}

	if sq.Distinct != "" {
		values, err := col.Distinct(ctx, sq.Distinct, sq.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to get distinct %s of %s: %w", sq.Distinct, e.Name, err)
		}
		if sq.OnlyCount {
			res.Count = int64(len(values))
		} else {
			res.Scalars = values
		}
		return res, nil
	}

	if sq.OnlyCount {
		n, err := col.CountDocuments(ctx, sq.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", e.Name, err)
		}
		res.Count = n
		return res, nil
	}

	opts := options.Find().SetProjection(sq.Projection)
	if len(sq.Sort) > 0 {
		opts.SetSort(sq.Sort)
	}
	if sq.Limit != nil {
		opts.SetLimit(*sq.Limit)
	}
	if sq.Skip != nil {
		opts.SetSkip(*sq.Skip)
	}

	cur, err := col.Find(ctx, sq.Filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", e.Name, err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		switch sq.Kind {
		case model.ResultInstances:
			doc := new(T)
			if err := cur.Decode(doc); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", e.Name, err)
			}
			res.Instances = append(res.Instances, doc)
		case model.ResultRecords:
			rec := model.Record{}
			if err := cur.Decode(&rec); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", e.Name, err)
			}
			res.Records = append(res.Records, rec)
		case model.ResultScalars:
			rec := model.Record{}
			if err := cur.Decode(&rec); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", e.Name, err)
			}
			res.Scalars = append(res.Scalars, lookupPath(rec, sq.FlatField))
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", e.Name, err)
	}

	log.Debugf("Filter returned %d %s", res.Len(), res.Kind)
	return res, nil
}

// All returns every document ordered by id.
func (m *Model[T, PT]) All(ctx context.Context) ([]*T, error) {
	res, err := m.Filter(ctx, model.Query{})
	if err != nil {
		return nil, err
	}
	return res.Instances, nil
}

// Count returns the number of documents matching filter.
func (m *Model[T, PT]) Count(ctx context.Context, filter model.Query) (int64, error) {
	q := model.Query(plainFilter(filter))
	q[model.KeyOnlyCount] = true
	res, err := m.Filter(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// ensureID allocates an identity unless doc already has one.
func (m *Model[T, PT]) ensureID(ctx context.Context, e *Entry, doc PT) error {
	if model.HasID(doc) {
		return nil
	}
	id, err := e.Handles.Allocator.Next(ctx, e.Config.CollectionName)
	if err != nil {
		return err
	}
	doc.SetID(id)
	return nil
}

// Create assigns an identity if needed, inserts doc and returns the stored copy.
func (m *Model[T, PT]) Create(ctx context.Context, doc *T) (*T, error) {
	if doc == nil {
		return nil, errors.NewValidationError("cannot create a nil document")
	}
	ctx, e, log, err := m.begin(ctx, "create")
	if err != nil {
		return nil, err
	}

	if err := m.ensureID(ctx, e, PT(doc)); err != nil {
		return nil, err
	}

	insertedID, err := e.Collection().InsertOne(ctx, doc)
	if err != nil {
		log.WithFields(map[string]interface{}{"error": err.Error()}).Error("Failed to create document")
		return nil, fmt.Errorf("failed to create %s: %w", e.Name, err)
	}

	stored, err := m.findOne(ctx, e, bson.M{model.NativeIDField: insertedID})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.NewInternalError(fmt.Sprintf("created %s vanished before it could be read back", e.Name)).
			WithCause(errors.ErrDocumentNotFound)
	}

	id := *PT(stored).GetID()
	log.WithFields(map[string]interface{}{"id": id}).Info("Document created")
	m.registry.publish(ctx, eventbus.NewDocumentEvent(eventbus.EventTypeDocumentCreated, e.Name, e.Config.CollectionName, id, stored))
	return stored, nil
}

// CreateFromFields builds a T from fields, keyed by bson field name, and creates it.
func (m *Model[T, PT]) CreateFromFields(ctx context.Context, fields model.Record) (*T, error) {
	doc, err := m.FromFields(fields)
	if err != nil {
		return nil, err
	}
	return m.Create(ctx, doc)
}

// FromFields decodes fields into a new T without touching the store.
func (m *Model[T, PT]) FromFields(fields model.Record) (*T, error) {
	raw, err := bson.Marshal(fields)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid fields for %s", m.typ.Name())).WithCause(err)
	}
	doc := new(T)
	if err := bson.Unmarshal(raw, doc); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid fields for %s", m.typ.Name())).WithCause(err)
	}
	return doc, nil
}

// GetOrCreate returns the first document matching fields, creating it from fields on a miss.
// The lookup and the insert are separate round trips; concurrent callers may both create.
func (m *Model[T, PT]) GetOrCreate(ctx context.Context, fields model.Record) (*T, bool, error) {
	found, err := m.Get(ctx, model.Query(fields))
	if err != nil {
		return nil, false, err
	}
	if found != nil {
		return found, false, nil
	}
	created, err := m.CreateFromFields(ctx, fields)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// Save writes doc keyed by its identity. Without an identity it allocates one,
// unless onlyUpdate is set, in which case nothing is written and false is returned.
// With onlyUpdate no document is inserted; the result reports whether one matched.
func (m *Model[T, PT]) Save(ctx context.Context, doc *T, onlyUpdate bool) (bool, error) {
	if doc == nil {
		return false, errors.NewValidationError("cannot save a nil document")
	}
	if onlyUpdate && !model.HasID(PT(doc)) {
		return false, nil
	}
	ctx, e, log, err := m.begin(ctx, "save")
	if err != nil {
		return false, err
	}

	if err := m.ensureID(ctx, e, PT(doc)); err != nil {
		return false, err
	}
	id := *PT(doc).GetID()

	res, err := e.Collection().UpdateOne(ctx,
		bson.M{model.IDField: id},
		bson.M{"$set": doc},
		options.Update().SetUpsert(!onlyUpdate),
	)
	if err != nil {
		log.WithFields(map[string]interface{}{"id": id, "error": err.Error()}).Error("Failed to save document")
		return false, fmt.Errorf("failed to save %s %d: %w", e.Name, id, err)
	}

	written := res.MatchedCount > 0 || res.UpsertedID != nil
	if written {
		m.registry.publish(ctx, eventbus.NewDocumentEvent(eventbus.EventTypeDocumentSaved, e.Name, e.Config.CollectionName, id, doc))
	}
	return written, nil
}

// Delete removes the document with doc's identity. It returns false when doc has
// no identity or nothing matched.
func (m *Model[T, PT]) Delete(ctx context.Context, doc *T) (bool, error) {
	if doc == nil || !model.HasID(PT(doc)) {
		return false, nil
	}
	ctx, e, log, err := m.begin(ctx, "delete")
	if err != nil {
		return false, err
	}

	id := *PT(doc).GetID()
	n, err := e.Collection().DeleteOne(ctx, bson.M{model.IDField: id})
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %d: %w", e.Name, id, err)
	}
	if n == 0 {
		return false, nil
	}

	log.WithFields(map[string]interface{}{"id": id}).Info("Document deleted")
	m.registry.publish(ctx, eventbus.NewDocumentEvent(eventbus.EventTypeDocumentDeleted, e.Name, e.Config.CollectionName, id, doc))
	return true, nil
}

// DirectDelete removes every document matching filter and returns how many went.
func (m *Model[T, PT]) DirectDelete(ctx context.Context, filter model.Query) (int64, error) {
	ctx, e, log, err := m.begin(ctx, "direct_delete")
	if err != nil {
		return 0, err
	}
	n, err := e.Collection().DeleteMany(ctx, plainFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s documents: %w", e.Name, err)
	}
	log.Infof("Deleted %d documents", n)
	return n, nil
}

// Aggregate runs pipeline and returns its output records, or nil when there are none.
func (m *Model[T, PT]) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) ([]model.Record, error) {
	ctx, e, _, err := m.begin(ctx, "aggregate")
	if err != nil {
		return nil, err
	}
	cur, err := e.Collection().Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", e.Name, err)
	}
	defer cur.Close(ctx)

	var out []model.Record
	for cur.Next(ctx) {
		rec := model.Record{}
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s aggregation: %w", e.Name, err)
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s aggregation: %w", e.Name, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// RefreshFromDB reloads doc in place from the store. It returns nil when doc has
// no identity or its document no longer exists; doc is left untouched then.
func (m *Model[T, PT]) RefreshFromDB(ctx context.Context, doc *T) (*T, error) {
	if doc == nil || !model.HasID(PT(doc)) {
		return nil, nil
	}
	ctx, e, _, err := m.begin(ctx, "refresh")
	if err != nil {
		return nil, err
	}
	fresh, err := m.findOne(ctx, e, bson.M{model.IDField: *PT(doc).GetID()})
	if err != nil || fresh == nil {
		return nil, err
	}
	*doc = *fresh
	return doc, nil
}

// EnsureUniqueIndex declares a unique single-field index. It reports whether one was created.
func (m *Model[T, PT]) EnsureUniqueIndex(ctx context.Context, field string, direction model.IndexDirection) (bool, error) {
	ctx, e, _, err := m.begin(ctx, "ensure_index")
	if err != nil {
		return false, err
	}
	return e.Handles.Indexes.EnsureUniqueIndex(ctx, field, direction)
}

// EnsureUniqueIndexTogether declares a unique compound index over keys, in order.
func (m *Model[T, PT]) EnsureUniqueIndexTogether(ctx context.Context, keys ...model.IndexKey) (bool, error) {
	ctx, e, _, err := m.begin(ctx, "ensure_index")
	if err != nil {
		return false, err
	}
	return e.Handles.Indexes.EnsureUniqueIndexTogether(ctx, keys)
}

// plainFilter drops control keys, leaving only store filter terms.
func plainFilter(q model.Query) bson.M {
	out := bson.M{}
	for k, v := range q {
		if !model.IsControlKey(k) {
			out[k] = v
		}
	}
	return out
}

// lookupPath reads a possibly dotted field from rec, nil when absent.
func lookupPath(rec model.Record, path string) interface{} {
	var cur interface{} = rec
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case bson.M:
			cur = m[part]
		case map[string]interface{}:
			cur = m[part]
		case bson.D:
			var next interface{}
			for _, e := range m {
				if e.Key == part {
					next = e.Value
					break
				}
			}
			cur = next
		default:
			return nil
		}
	}
	return cur
}
