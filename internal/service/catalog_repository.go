package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/paging"
	"github.com/vanshika/graphrepo/internal/query"
	"github.com/vanshika/graphrepo/internal/repository"
)

// GenreRepository stores genres, unique by name.
type GenreRepository struct {
	*repository.Repository[domain.Genre]

	findOneByName *query.GraphRepositoryQuery
}

// NewGenreRepository declares the genre query methods against session.
func NewGenreRepository(session *ogm.Session, logger *slog.Logger) (*GenreRepository, error) {
	base, err := repository.New[domain.Genre](session, logger)
	if err != nil {
		return nil, err
	}
	findOneByName, err := base.Derive("findOneByName", query.ReturnEntity)
	if err != nil {
		return nil, err
	}
	return &GenreRepository{Repository: base, findOneByName: findOneByName}, nil
}

// FindOneByName returns the genre called name.
func (r *GenreRepository) FindOneByName(ctx context.Context, name string) (*domain.Genre, bool, error) {
	return query.One[*domain.Genre](ctx, r.findOneByName, name)
}

// FindOrCreate returns the genre called name, creating it when missing. A
// concurrent creation rejected by the uniqueness constraint is resolved by
// reading the winner back.
func (r *GenreRepository) FindOrCreate(ctx context.Context, name string) (*domain.Genre, error) {
	genre, found, err := r.FindOneByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if found {
		return genre, nil
	}
	genre = &domain.Genre{Name: name}
	err = r.Save(ctx, genre)
	if errors.Is(err, dataaccess.ErrIntegrityViolation) {
		genre, found, err = r.FindOneByName(ctx, name)
		if err == nil && !found {
			err = dataaccess.Newf(dataaccess.KindDataRetrieval, "find or create genre", "genre %q vanished", name)
		}
	}
	if err != nil {
		return nil, err
	}
	return genre, nil
}

// CinemaRepository stores cinemas and the users who visited them.
type CinemaRepository struct {
	*repository.Repository[domain.Cinema]

	findOneByName      *query.GraphRepositoryQuery
	findByVisitorsName *query.GraphRepositoryQuery
	findByCapacity     *query.GraphRepositoryQuery
}

// NewCinemaRepository declares the cinema query methods against session.
func NewCinemaRepository(session *ogm.Session, logger *slog.Logger) (*CinemaRepository, error) {
	base, err := repository.New[domain.Cinema](session, logger)
	if err != nil {
		return nil, err
	}
	r := &CinemaRepository{Repository: base}
	if r.findOneByName, err = base.Derive("findOneByName", query.ReturnEntity); err != nil {
		return nil, err
	}
	if r.findByVisitorsName, err = base.Derive("findByVisitorsNameOrderByNameAsc", query.ReturnCollection); err != nil {
		return nil, err
	}
	if r.findByCapacity, err = base.Derive("findByCapacityGreaterThanEqual", query.ReturnCollection, query.SortParam()); err != nil {
		return nil, err
	}
	return r, nil
}

// FindOneByName returns the cinema called name.
func (r *CinemaRepository) FindOneByName(ctx context.Context, name string) (*domain.Cinema, bool, error) {
	return query.One[*domain.Cinema](ctx, r.findOneByName, name)
}

// FindByVisitorsName returns the cinemas visited by a user called name.
func (r *CinemaRepository) FindByVisitorsName(ctx context.Context, name string) ([]*domain.Cinema, error) {
	return query.List[*domain.Cinema](ctx, r.findByVisitorsName, name)
}

// FindByCapacityGreaterThanEqual returns the cinemas seating at least seats.
func (r *CinemaRepository) FindByCapacityGreaterThanEqual(ctx context.Context, seats int, sort paging.Sort) ([]*domain.Cinema, error) {
	return query.List[*domain.Cinema](ctx, r.findByCapacity, seats, sort)
}

// EnsureSchema creates the uniqueness constraints the services rely on.
func EnsureSchema(ctx context.Context, client graph.Client) error {
	constraints := []struct{ label, property string }{
		{"Genre", "name"},
		{"User", "emailAddress"},
		{"Theatre", "name"},
	}
	for _, c := range constraints {
		if err := graph.EnsureUniqueConstraint(ctx, client, c.label, c.property); err != nil {
			return fmt.Errorf("ensure %s.%s constraint: %w", c.label, c.property, dataaccess.Translate("ensure schema", err))
		}
	}
	return nil
}
