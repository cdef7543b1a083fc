package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/paging"
)

// UserStore is the storage contract required by the user service.
type UserStore interface {
	Save(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	FindOptionalByEmailAddress(ctx context.Context, email string) (*domain.User, bool, error)
	FindUsersPage(ctx context.Context, pageable paging.Pageable) (paging.Page[*domain.User], error)
	SearchByName(ctx context.Context, fragment string, pageable paging.Pageable) (paging.Slice[*domain.User], error)
	FriendsOf(ctx context.Context, user *domain.User) ([]*domain.User, error)
}

// GenreStore resolves genres by name.
type GenreStore interface {
	FindOrCreate(ctx context.Context, name string) (*domain.Genre, error)
}

// sortableUserFields maps API sort keys onto stored property names.
var sortableUserFields = map[string]string{
	"name":      "name",
	"email":     "emailAddress",
	"born":      "born",
	"createdat": "createdAt",
}

// UserService validates user payloads and delegates persistence to the stores.
type UserService struct {
	users  UserStore
	genres GenreStore
	limits PageLimits
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewUserService constructs a UserService. Zero limits fall back to pages of
// 20 capped at 100.
func NewUserService(users UserStore, genres GenreStore, limits PageLimits, logger *slog.Logger) *UserService {
	if limits.DefaultSize <= 0 {
		limits.DefaultSize = 20
	}
	if limits.MaxSize <= 0 {
		limits.MaxSize = 100
	}
	if limits.DefaultSize > limits.MaxSize {
		limits.DefaultSize = limits.MaxSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &UserService{
		users:  users,
		genres: genres,
		limits: limits,
		logger: logger.With("component", "user_service"),
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *UserService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Register validates input and stores a new user with its genre interests.
func (s *UserService) Register(ctx context.Context, input UserInput) (*domain.User, error) {
	name := sanitizeString(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if email != "" && !validEmail(email) {
		return nil, fmt.Errorf("%w: malformed email %q", ErrInvalidInput, input.Email)
	}
	if email != "" {
		_, taken, err := s.users.FindOptionalByEmailAddress(ctx, email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
		}
	}

	user := &domain.User{
		Name:      name,
		Email:     email,
		CreatedAt: s.nowFn().UTC(),
	}
	if input.Born != nil {
		born := input.Born.UTC()
		user.Born = &born
	}
	for _, genreName := range normalizeGenres(input.Genres) {
		genre, err := s.genres.FindOrCreate(ctx, genreName)
		if err != nil {
			return nil, fmt.Errorf("resolve genre %q: %w", genreName, err)
		}
		user.Genres = append(user.Genres, *genre)
	}

	if err := s.users.Save(ctx, user); err != nil {
		// a concurrent registration can win the race past the lookup above
		return nil, asConflict(err, "email %s is already registered", email)
	}
	s.logger.Info("registered user", "id", user.ID, "genres", len(user.Genres))
	return user, nil
}

// Get loads a user and its direct relationships.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	user, found, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, nil
}

// Rename changes the name of a stored user.
func (s *UserService) Rename(ctx context.Context, id, name string) (*domain.User, error) {
	name = sanitizeString(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Name = name
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// NotInterestedIn drops the INTERESTED relationship to the named genre. The
// genre node itself is kept.
func (s *UserService) NotInterestedIn(ctx context.Context, id, genre string) (*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	kept := make([]domain.Genre, 0, len(user.Genres))
	for _, g := range user.Genres {
		if !strings.EqualFold(g.Name, sanitizeString(genre)) {
			kept = append(kept, g)
		}
	}
	if len(kept) == len(user.Genres) {
		return user, nil
	}
	user.Genres = kept
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Befriend links two stored users with an undirected FRIEND_OF relationship.
func (s *UserService) Befriend(ctx context.Context, id, friendID string) (*domain.User, error) {
	if strings.TrimSpace(id) == strings.TrimSpace(friendID) {
		return nil, fmt.Errorf("%w: a user cannot befriend itself", ErrInvalidInput)
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	friend, err := s.Get(ctx, friendID)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, user, friend)
}

// BefriendByEmail is Befriend for users identified by their email addresses.
func (s *UserService) BefriendByEmail(ctx context.Context, input FriendshipInput) (*domain.User, error) {
	user, err := s.byEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	friend, err := s.byEmail(ctx, input.FriendEmail)
	if err != nil {
		return nil, err
	}
	if user.ID == friend.ID {
		return nil, fmt.Errorf("%w: a user cannot befriend itself", ErrInvalidInput)
	}
	// the email query returns the bare node, reload to keep existing friends
	if user, err = s.Get(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.link(ctx, user, friend)
}

func (s *UserService) link(ctx context.Context, user, friend *domain.User) (*domain.User, error) {
	for _, f := range user.Friends {
		if f != nil && f.ID == friend.ID {
			return user, nil
		}
	}
	user.Friends = append(user.Friends, friend)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) byEmail(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: malformed email %q", ErrInvalidInput, email)
	}
	user, found, err := s.users.FindOptionalByEmailAddress(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("user with email %s: %w", email, ErrNotFound)
	}
	return user, nil
}

// Delete removes a user and its relationships.
func (s *UserService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	deleted, err := s.users.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	s.logger.Info("deleted user", "id", id)
	return nil
}

// ListUsers retrieves a page of users with totals.
func (s *UserService) ListUsers(ctx context.Context, params ListUsersParams) (UsersPage, error) {
	pageable, err := s.pageable(params)
	if err != nil {
		return UsersPage{}, err
	}
	result, err := s.users.FindUsersPage(ctx, pageable)
	if err != nil {
		return UsersPage{}, err
	}
	return UsersPage{
		Items:      result.Content,
		Pagination: buildPaginationMeta(pageable.Page+1, pageable.Size, result.Total),
	}, nil
}

// SearchUsers returns a window of users whose name contains fragment,
// ignoring case, without counting the matches.
func (s *UserService) SearchUsers(ctx context.Context, fragment string, params ListUsersParams) (UsersSlice, error) {
	fragment = sanitizeString(fragment)
	if fragment == "" {
		return UsersSlice{}, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}
	pageable, err := s.pageable(params)
	if err != nil {
		return UsersSlice{}, err
	}
	result, err := s.users.SearchByName(ctx, fragment, pageable)
	if err != nil {
		return UsersSlice{}, err
	}
	return UsersSlice{
		Items:    result.Content,
		Page:     pageable.Page + 1,
		PageSize: pageable.Size,
		HasNext:  result.HasNext(),
	}, nil
}

// Friends lists the friends of a stored user.
func (s *UserService) Friends(ctx context.Context, id string) ([]*domain.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.users.FriendsOf(ctx, user)
}

func (s *UserService) pageable(params ListUsersParams) (paging.Pageable, error) {
	page, pageSize := normalizePagination(params.Page, params.PageSize, s.limits)
	sort, err := paging.ParseSort(params.Sort)
	if err != nil {
		return paging.Pageable{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for i, order := range sort.Orders {
		property, ok := sortableUserFields[strings.ToLower(order.Property)]
		if !ok {
			return paging.Pageable{}, fmt.Errorf("%w: cannot sort users by %q", ErrInvalidInput, order.Property)
		}
		sort.Orders[i].Property = property
	}
	return paging.Pageable{Page: page - 1, Size: pageSize, Sort: sort}, nil
}
