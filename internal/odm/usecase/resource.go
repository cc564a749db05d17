package usecase

import (
	"context"

	"mongodb-orm/internal/odm/domain/model"
)

// Resource is the type-erased view of a Model that transports work with.
// Methods returning interface{} return a plain nil when nothing was found.
type Resource interface {
	ModelName() string
	Entry() (*Entry, error)
	Query(ctx context.Context, q model.Query) (interface{}, error)
	FetchByID(ctx context.Context, id int64) (interface{}, error)
	CreateRecord(ctx context.Context, fields model.Record) (interface{}, error)
	ReplaceRecord(ctx context.Context, id int64, fields model.Record) (interface{}, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
}

func (m *Model[T, PT]) Query(ctx context.Context, q model.Query) (interface{}, error) {
	return m.Filter(ctx, q)
}

func (m *Model[T, PT]) FetchByID(ctx context.Context, id int64) (interface{}, error) {
	doc, err := m.Get(ctx, model.Query{model.IDField: id})
	if err != nil || doc == nil {
		return nil, err
	}
	return doc, nil
}

func (m *Model[T, PT]) CreateRecord(ctx context.Context, fields model.Record) (interface{}, error) {
	doc, err := m.CreateFromFields(ctx, fields)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ReplaceRecord overwrites the document with the given identity. It never inserts.
func (m *Model[T, PT]) ReplaceRecord(ctx context.Context, id int64, fields model.Record) (interface{}, error) {
	doc, err := m.FromFields(fields)
	if err != nil {
		return nil, err
	}
	PT(doc).SetID(id)

	ok, err := m.Save(ctx, doc, true)
	if err != nil || !ok {
		return nil, err
	}
	return m.FetchByID(ctx, id)
}

func (m *Model[T, PT]) DeleteByID(ctx context.Context, id int64) (bool, error) {
	doc := new(T)
	PT(doc).SetID(id)
	return m.Delete(ctx, doc)
}
