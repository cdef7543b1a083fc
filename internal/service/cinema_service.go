package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/paging"
)

// CinemaStore is the storage contract required by the cinema service.
type CinemaStore interface {
	Save(ctx context.Context, cinema *domain.Cinema) error
	FindByID(ctx context.Context, id string) (*domain.Cinema, bool, error)
	FindAll(ctx context.Context, sort paging.Sort) ([]*domain.Cinema, error)
	FindOneByName(ctx context.Context, name string) (*domain.Cinema, bool, error)
	FindByVisitorsName(ctx context.Context, name string) ([]*domain.Cinema, error)
	FindByCapacityGreaterThanEqual(ctx context.Context, seats int, sort paging.Sort) ([]*domain.Cinema, error)
}

// CinemaService manages cinemas and the visits users make to them.
type CinemaService struct {
	cinemas CinemaStore
	users   UserStore
	logger  *slog.Logger
}

// NewCinemaService constructs a CinemaService.
func NewCinemaService(cinemas CinemaStore, users UserStore, logger *slog.Logger) *CinemaService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CinemaService{
		cinemas: cinemas,
		users:   users,
		logger:  logger.With("component", "cinema_service"),
	}
}

// List returns cinemas seating at least minCapacity, ordered by name. A zero
// minCapacity lists every cinema.
func (s *CinemaService) List(ctx context.Context, minCapacity int) ([]*domain.Cinema, error) {
	if minCapacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}
	if minCapacity == 0 {
		return s.cinemas.FindAll(ctx, paging.By("name"))
	}
	return s.cinemas.FindByCapacityGreaterThanEqual(ctx, minCapacity, paging.By("name"))
}

// Create validates input and stores a new cinema. Names are unique.
func (s *CinemaService) Create(ctx context.Context, input CinemaInput) (*domain.Cinema, error) {
	name := sanitizeString(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: cinema name is required", ErrInvalidInput)
	}
	if input.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}
	_, exists, err := s.cinemas.FindOneByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: cinema %q already exists", ErrConflict, name)
	}
	cinema := &domain.Cinema{
		Name:     name,
		City:     sanitizeString(input.City),
		Capacity: input.Capacity,
	}
	if err := s.cinemas.Save(ctx, cinema); err != nil {
		return nil, asConflict(err, "cinema %q already exists", name)
	}
	s.logger.Info("created cinema", "id", cinema.ID, "name", cinema.Name)
	return cinema, nil
}

// Visit records that the user registered with input.Email visited the cinema
// called input.Cinema.
func (s *CinemaService) Visit(ctx context.Context, input VisitInput) (*domain.Cinema, error) {
	email := normalizeEmail(input.Email)
	name := sanitizeString(input.Cinema)
	if !validEmail(email) || name == "" {
		return nil, fmt.Errorf("%w: visit needs an email and a cinema name", ErrInvalidInput)
	}
	user, found, err := s.users.FindOptionalByEmailAddress(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
	}
	match, found, err := s.cinemas.FindOneByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("cinema %q: %w", name, ErrNotFound)
	}
	// reload with visitors so saving keeps the earlier visits
	cinema, found, err := s.cinemas.FindByID(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("cinema %q: %w", name, ErrNotFound)
	}
	for _, v := range cinema.Visitors {
		if v != nil && v.ID == user.ID {
			return cinema, nil
		}
	}
	cinema.Visitors = append(cinema.Visitors, user)
	if err := s.cinemas.Save(ctx, cinema); err != nil {
		return nil, err
	}
	return cinema, nil
}

// VisitedBy lists the cinemas visited by users called name.
func (s *CinemaService) VisitedBy(ctx context.Context, name string) ([]*domain.Cinema, error) {
	name = sanitizeString(name)
	if name == "" {
		return nil, fmt.Errorf("%w: visitor name is required", ErrInvalidInput)
	}
	return s.cinemas.FindByVisitorsName(ctx, name)
}
