// Package library declares the example models served by the CLI: authors and
// the books they write.
package library

import (
	"context"
	"fmt"

	"mongodb-orm/internal/odm/domain/model"
	"mongodb-orm/internal/odm/usecase"
	"mongodb-orm/internal/shared/logger"

	"golang.org/x/sync/errgroup"
)

// Author is unique by first and last name together.
type Author struct {
	model.Base `bson:",inline"`
	FirstName  string `bson:"first_name" json:"first_name"`
	LastName   string `bson:"last_name" json:"last_name"`
	Born       int    `bson:"born,omitempty" json:"born,omitempty"`
}

// Book is unique by title.
type Book struct {
	model.Base `bson:",inline"`
	Title      string   `bson:"title" json:"title"`
	AuthorID   int64    `bson:"author_id" json:"author_id"`
	Year       int      `bson:"year" json:"year"`
	Tags       []string `bson:"tags,omitempty" json:"tags,omitempty"`
}

// Catalog holds the bound library models.
type Catalog struct {
	Authors *usecase.Model[Author, *Author]
	Books   *usecase.Model[Book, *Book]
	logger  logger.Logger
}

// Samples lists one zero value per library model, for Registry.RegisterAll.
func Samples() []interface{} {
	return []interface{}{Author{}, Book{}}
}

// NewCatalog registers every library model on r. Models that failed to register
// are reported in the results and left unbound; their operations return a
// configuration error until they are registered again.
func NewCatalog(ctx context.Context, r *usecase.Registry, shared interface{}, log logger.Logger) (*Catalog, []usecase.RegistrationResult) {
	results := r.RegisterAll(ctx, Samples(), shared)
	return &Catalog{
		Authors: usecase.NewModel[Author](r),
		Books:   usecase.NewModel[Book](r),
		logger:  logger.OrNop(log).WithComponent("library"),
	}, results
}

// Resources returns the models the HTTP surface serves.
func (c *Catalog) Resources() []usecase.Resource {
	return []usecase.Resource{c.Authors, c.Books}
}

// EnsureIndexes declares the catalog's unique indexes concurrently.
func (c *Catalog) EnsureIndexes(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		created, err := c.Authors.EnsureUniqueIndexTogether(ctx,
			model.IndexKey{Field: "first_name", Direction: model.Ascending},
			model.IndexKey{Field: "last_name", Direction: model.Ascending},
		)
		if err != nil {
			return fmt.Errorf("failed to index authors: %w", err)
		}
		c.logger.WithFields(map[string]interface{}{"model": "Author", "created": created}).Debug("Author index ensured")
		return nil
	})
	g.Go(func() error {
		created, err := c.Books.EnsureUniqueIndex(ctx, "title", model.Ascending)
		if err != nil {
			return fmt.Errorf("failed to index books: %w", err)
		}
		c.logger.WithFields(map[string]interface{}{"model": "Book", "created": created}).Debug("Book index ensured")
		return nil
	})
	return g.Wait()
}

// BooksBy returns the books written by author, oldest first.
func (c *Catalog) BooksBy(ctx context.Context, author *Author) ([]*Book, error) {
	if author == nil || author.ID == nil {
		return nil, nil
	}
	res, err := c.Books.Filter(ctx, model.Query{
		"author_id": *author.ID,
		"sort_by":   "year",
	})
	if err != nil {
		return nil, err
	}
	return res.Instances, nil
}

// AddBook files a book under author, creating the author when unknown.
func (c *Catalog) AddBook(ctx context.Context, firstName, lastName string, book *Book) (*Book, error) {
	author, _, err := c.Authors.GetOrCreate(ctx, model.Record{"first_name": firstName, "last_name": lastName})
	if err != nil {
		return nil, err
	}
	book.AuthorID = *author.ID
	return c.Books.Create(ctx, book)
}
