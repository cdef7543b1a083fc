package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/domain"
)

var (
	// ErrInvalidInput marks payloads rejected before reaching the graph.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks lookups by id that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks writes that clash with stored data.
	ErrConflict = errors.New("conflict")
)

// asConflict reports a uniqueness constraint that rejected a save as
// ErrConflict, keeping the store error in the chain. Other errors pass through.
func asConflict(err error, format string, args ...any) error {
	if dataaccess.KindOf(err) != dataaccess.KindIntegrityViolation {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrConflict, fmt.Sprintf(format, args...), err)
}

// UserInput is the inbound payload used to register a user.
type UserInput struct {
	Name   string     `json:"name"`
	Email  string     `json:"email,omitempty"`
	Born   *time.Time `json:"born,omitempty"`
	Genres []string   `json:"genres,omitempty"`
}

// CinemaInput is the inbound payload used to create a cinema.
type CinemaInput struct {
	Name     string `json:"name"`
	City     string `json:"city,omitempty"`
	Capacity int    `json:"capacity"`
}

// FriendshipInput links two users by email.
type FriendshipInput struct {
	Email       string `json:"email"`
	FriendEmail string `json:"friendEmail"`
}

// VisitInput records that the user with Email visited the cinema called Cinema.
type VisitInput struct {
	Email  string `json:"email"`
	Cinema string `json:"cinema"`
}

// Dataset groups everything the bulk ingestor loads.
type Dataset struct {
	Users       []UserInput       `json:"users"`
	Cinemas     []CinemaInput     `json:"cinemas"`
	Friendships []FriendshipInput `json:"friendships"`
	Visits      []VisitInput      `json:"visits"`
}

// PaginationMeta captures pagination metadata returned to API clients.
type PaginationMeta struct {
	Page       int
	PageSize   int
	TotalItems int64
	TotalPages int
}

// UsersPage represents paginated users with metadata.
type UsersPage struct {
	Items      []*domain.User
	Pagination PaginationMeta
}

// UsersSlice is a window of users without a total.
type UsersSlice struct {
	Items    []*domain.User
	Page     int
	PageSize int
	HasNext  bool
}

// ListUsersParams defines paging for listing users. Page is one-based and Sort
// reads "prop,dir;prop2,dir2".
type ListUsersParams struct {
	Page     int
	PageSize int
	Sort     string
}

// PageLimits bounds the page sizes callers may request.
type PageLimits struct {
	DefaultSize int
	MaxSize     int
}
