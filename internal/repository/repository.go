// Package repository provides a generic CRUD repository over an ogm session,
// plus factories for the annotated and derived query methods of an entity.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/paging"
	"github.com/vanshika/graphrepo/internal/query"
	"github.com/vanshika/graphrepo/internal/query/derived"
)

// Repository persists and loads entities of type T.
type Repository[T any] struct {
	session *ogm.Session
	meta    *ogm.Entity
	logger  *slog.Logger
}

// New instantiates a Repository for T, which must be a mappable entity.
func New[T any](session *ogm.Session, logger *slog.Logger) (*Repository[T], error) {
	meta, err := ogm.MetadataFor[T]()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Repository[T]{
		session: session,
		meta:    meta,
		logger:  logger.With("component", "repository", "entity", meta.Name()),
	}, nil
}

// Session returns the session the repository runs on.
func (r *Repository[T]) Session() *ogm.Session {
	return r.session
}

// Save creates or updates entity and assigns its id when new.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return dataaccess.Newf(dataaccess.KindInvalidUsage, "save "+r.meta.Name(), "entity is nil")
	}
	return r.session.Save(ctx, entity)
}

// SaveAll saves entities in order and stops at the first failure.
func (r *Repository[T]) SaveAll(ctx context.Context, entities []*T) error {
	for i, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			return fmt.Errorf("save %s #%d: %w", r.meta.Name(), i, err)
		}
	}
	return nil
}

// FindByID loads the entity with id and its direct relationships.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, bool, error) {
	if err := r.checkID("find", id); err != nil {
		return nil, false, err
	}
	v, found, err := r.session.Load(ctx, r.meta.Type, id)
	if err != nil || !found {
		return nil, false, err
	}
	return v.(*T), true, nil
}

// FindAll loads every entity ordered by sort.
func (r *Repository[T]) FindAll(ctx context.Context, sort paging.Sort) ([]*T, error) {
	items, err := r.session.LoadAll(ctx, r.meta.Type, sort, paging.Unpaged)
	if err != nil {
		return nil, err
	}
	return typed[T](items), nil
}

// FindPage loads one page of entities. An unpaged pageable yields everything
// as a single page.
func (r *Repository[T]) FindPage(ctx context.Context, pageable paging.Pageable) (paging.Page[*T], error) {
	items, err := r.session.LoadAll(ctx, r.meta.Type, pageable.Sort, pageable)
	if err != nil {
		return paging.Page[*T]{}, err
	}
	content := typed[T](items)
	if !pageable.IsPaged() {
		return paging.PageOf(content), nil
	}
	total, err := r.Count(ctx)
	if err != nil {
		return paging.Page[*T]{}, err
	}
	return paging.NewPage(content, pageable, total), nil
}

// FindAllByID loads the entities among ids. Missing ids are skipped.
func (r *Repository[T]) FindAllByID(ctx context.Context, ids []string) ([]*T, error) {
	for _, id := range ids {
		if err := r.checkID("find all", id); err != nil {
			return nil, err
		}
	}
	items, err := r.session.LoadAllByID(ctx, r.meta.Type, ids)
	if err != nil {
		return nil, err
	}
	return typed[T](items), nil
}

// Count returns the number of stored entities.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return r.session.Count(ctx, r.meta.Type)
}

// ExistsByID reports whether an entity with id is stored.
func (r *Repository[T]) ExistsByID(ctx context.Context, id string) (bool, error) {
	if err := r.checkID("exists", id); err != nil {
		return false, err
	}
	return r.session.Exists(ctx, r.meta.Type, id)
}

// Delete removes a persisted entity.
func (r *Repository[T]) Delete(ctx context.Context, entity *T) error {
	if entity == nil {
		return dataaccess.Newf(dataaccess.KindInvalidUsage, "delete "+r.meta.Name(), "entity is nil")
	}
	return r.session.Delete(ctx, entity)
}

// DeleteByID removes the entity with id and reports whether it existed.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := r.checkID("delete", id); err != nil {
		return false, err
	}
	return r.session.DeleteByID(ctx, r.meta.Type, id)
}

// DeleteAll removes every entity and returns how many were deleted.
func (r *Repository[T]) DeleteAll(ctx context.Context) (int, error) {
	deleted, err := r.session.DeleteAll(ctx, r.meta.Type)
	if err != nil {
		return 0, err
	}
	r.logger.Info("deleted all entities", "count", deleted)
	return deleted, nil
}

// Query binds an annotated query method. Entity-returning methods default to T.
func (r *Repository[T]) Query(method query.Method, opts ...query.Option) (*query.GraphRepositoryQuery, error) {
	if method.Entity == nil {
		switch method.Returns {
		case query.ReturnEntity, query.ReturnCollection, query.ReturnPage, query.ReturnSlice:
			method.Entity = r.meta.Type
		}
	}
	return query.New(r.session, method, append([]query.Option{query.WithLogger(r.logger)}, opts...)...)
}

// Derive binds a query method whose Cypher is derived from name, such as
// findByNameContainingIgnoreCase. params lists the pageable, sort and
// projection parameters that follow the values the name asks for.
func (r *Repository[T]) Derive(name string, returns query.ReturnKind, params ...query.Param) (*query.GraphRepositoryQuery, error) {
	return derived.NewQuery(r.session, r.meta.Type, query.Method{
		Name:    name,
		Returns: returns,
		Params:  params,
	}, query.WithLogger(r.logger))
}

// DeriveMethod is Derive for declarations that also set a projection or a
// result type.
func (r *Repository[T]) DeriveMethod(method query.Method) (*query.GraphRepositoryQuery, error) {
	return derived.NewQuery(r.session, r.meta.Type, method, query.WithLogger(r.logger))
}

// EntityType is the reflected type of T.
func (r *Repository[T]) EntityType() reflect.Type {
	return r.meta.Type
}

func (r *Repository[T]) checkID(op, id string) error {
	if strings.TrimSpace(id) == "" {
		return dataaccess.Newf(dataaccess.KindInvalidUsage, op+" "+r.meta.Name(), "id must not be empty")
	}
	return nil
}

func typed[T any](items []any) []*T {
	out := make([]*T, 0, len(items))
	for _, item := range items {
		out = append(out, item.(*T))
	}
	return out
}
