package service

import (
	"context"
	"log/slog"

	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/graph"
	"github.com/vanshika/graphrepo/internal/ogm"
	"github.com/vanshika/graphrepo/internal/paging"
	"github.com/vanshika/graphrepo/internal/query"
	"github.com/vanshika/graphrepo/internal/repository"
)

const ratingSummaryCypher = `MATCH (m:Movie)<-[:RATES]-(r:Rating) WHERE m.title = $title
RETURN count(r) AS ratings, avg(r.stars) AS average`

// MovieRepository stores the movie catalogue.
type MovieRepository struct {
	*repository.Repository[domain.Movie]

	findOneByTitle        *query.GraphRepositoryQuery
	findByReleasedBetween *query.GraphRepositoryQuery
	findByGenresName      *query.GraphRepositoryQuery
}

// NewMovieRepository declares the movie query methods against session.
func NewMovieRepository(session *ogm.Session, logger *slog.Logger) (*MovieRepository, error) {
	base, err := repository.New[domain.Movie](session, logger)
	if err != nil {
		return nil, err
	}
	r := &MovieRepository{Repository: base}
	if r.findOneByTitle, err = base.Derive("findOneByTitle", query.ReturnEntity); err != nil {
		return nil, err
	}
	if r.findByReleasedBetween, err = base.Derive("findByReleasedBetween", query.ReturnCollection, query.SortParam()); err != nil {
		return nil, err
	}
	if r.findByGenresName, err = base.Derive("findByGenresNameOrderByReleasedDesc", query.ReturnCollection); err != nil {
		return nil, err
	}
	return r, nil
}

// FindOneByTitle returns the movie called title.
func (r *MovieRepository) FindOneByTitle(ctx context.Context, title string) (*domain.Movie, bool, error) {
	return query.One[*domain.Movie](ctx, r.findOneByTitle, title)
}

// FindByReleasedBetween returns movies released in [from, to].
func (r *MovieRepository) FindByReleasedBetween(ctx context.Context, from, to int, sort paging.Sort) ([]*domain.Movie, error) {
	return query.List[*domain.Movie](ctx, r.findByReleasedBetween, from, to, sort)
}

// FindByGenresName returns the movies of a genre, newest first.
func (r *MovieRepository) FindByGenresName(ctx context.Context, genre string) ([]*domain.Movie, error) {
	return query.List[*domain.Movie](ctx, r.findByGenresName, genre)
}

// ActorRepository stores actors and the movies they played in.
type ActorRepository struct {
	*repository.Repository[domain.Actor]

	findByMoviesTitle *query.GraphRepositoryQuery
}

// NewActorRepository declares the actor query methods against session.
func NewActorRepository(session *ogm.Session, logger *slog.Logger) (*ActorRepository, error) {
	base, err := repository.New[domain.Actor](session, logger)
	if err != nil {
		return nil, err
	}
	findByMoviesTitle, err := base.Derive("findByMoviesTitleOrderByNameAsc", query.ReturnCollection)
	if err != nil {
		return nil, err
	}
	return &ActorRepository{Repository: base, findByMoviesTitle: findByMoviesTitle}, nil
}

// FindByMoviesTitle returns the cast of the movie called title.
func (r *ActorRepository) FindByMoviesTitle(ctx context.Context, title string) ([]*domain.Actor, error) {
	return query.List[*domain.Actor](ctx, r.findByMoviesTitle, title)
}

// RatingSummary aggregates the ratings of one movie.
type RatingSummary struct {
	Ratings int64
	Average float64
}

// RatingRepository stores the ratings users give movies.
type RatingRepository struct {
	*repository.Repository[domain.Rating]

	summary *query.GraphRepositoryQuery
}

// NewRatingRepository declares the rating query methods against session.
func NewRatingRepository(session *ogm.Session, logger *slog.Logger) (*RatingRepository, error) {
	base, err := repository.New[domain.Rating](session, logger)
	if err != nil {
		return nil, err
	}
	summary, err := base.Query(query.Method{
		Name: "ratingSummary", Returns: query.ReturnMaps,
		Query: ratingSummaryCypher, Params: []query.Param{query.Named("title")},
	})
	if err != nil {
		return nil, err
	}
	return &RatingRepository{Repository: base, summary: summary}, nil
}

// Summary counts and averages the stars given to the movie called title. A
// movie nobody rated yields the zero summary.
func (r *RatingRepository) Summary(ctx context.Context, title string) (RatingSummary, error) {
	rows, err := query.Maps(ctx, r.summary, title)
	if err != nil || len(rows) == 0 {
		return RatingSummary{}, err
	}
	count, _ := graph.ToInt64(rows[0]["ratings"])
	return RatingSummary{Ratings: count, Average: graph.ToFloat64(rows[0]["average"])}, nil
}
