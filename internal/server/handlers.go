package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/service"
)

// UserService is what the user endpoints need from the service layer.
type UserService interface {
	Register(ctx context.Context, input service.UserInput) (*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Rename(ctx context.Context, id, name string) (*domain.User, error)
	NotInterestedIn(ctx context.Context, id, genre string) (*domain.User, error)
	Befriend(ctx context.Context, id, friendID string) (*domain.User, error)
	Friends(ctx context.Context, id string) ([]*domain.User, error)
	Delete(ctx context.Context, id string) error
	ListUsers(ctx context.Context, params service.ListUsersParams) (service.UsersPage, error)
	SearchUsers(ctx context.Context, fragment string, params service.ListUsersParams) (service.UsersSlice, error)
}

// CinemaService is what the cinema endpoints need from the service layer.
type CinemaService interface {
	List(ctx context.Context, minCapacity int) ([]*domain.Cinema, error)
	Create(ctx context.Context, input service.CinemaInput) (*domain.Cinema, error)
	Visit(ctx context.Context, input service.VisitInput) (*domain.Cinema, error)
	VisitedBy(ctx context.Context, name string) ([]*domain.Cinema, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger  *slog.Logger
	users   UserService
	cinemas CinemaService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, users UserService, cinemas CinemaService) *APIHandlers {
	return &APIHandlers{
		logger:  logger,
		users:   users,
		cinemas: cinemas,
	}
}

func (h *APIHandlers) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.registerUser(w, r)
	case http.MethodGet:
		h.listUsers(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleUser serves /users/{id}, /users/{id}/friends and
// /users/{id}/interests/{genre}.
func (h *APIHandlers) handleUser(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.EscapedPath(), "/users/"), "/")
	segments := strings.Split(rest, "/")
	for i, s := range segments {
		unescaped, err := url.PathUnescape(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed path")
			return
		}
		segments[i] = unescaped
	}
	id := segments[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodGet:
			user, err := h.users.Get(r.Context(), id)
			h.respondUser(w, r, http.StatusOK, user, err)
		case http.MethodPatch:
			var payload renameRequest
			if err := decodeJSON(r, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			user, err := h.users.Rename(r.Context(), id, payload.Name)
			h.respondUser(w, r, http.StatusOK, user, err)
		case http.MethodDelete:
			if err := h.users.Delete(r.Context(), id); err != nil {
				h.writeServiceError(w, r, err, "failed to delete user")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case len(segments) == 2 && segments[1] == "friends":
		switch r.Method {
		case http.MethodGet:
			friends, err := h.users.Friends(r.Context(), id)
			if err != nil {
				h.writeServiceError(w, r, err, "failed to list friends")
				return
			}
			respondJSON(w, http.StatusOK, itemsResponse[userResponse]{Items: toUserResponses(friends)})
		case http.MethodPost:
			var payload friendRequest
			if err := decodeJSON(r, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			user, err := h.users.Befriend(r.Context(), id, payload.FriendID)
			h.respondUser(w, r, http.StatusOK, user, err)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segments) == 3 && segments[1] == "interests":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		user, err := h.users.NotInterestedIn(r.Context(), id, segments[2])
		h.respondUser(w, r, http.StatusOK, user, err)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *APIHandlers) registerUser(w http.ResponseWriter, r *http.Request) {
	var payload userRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	input, err := payload.toServiceInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.Register(r.Context(), input)
	if err == nil {
		w.Header().Set("Location", "/users/"+url.PathEscape(user.ID))
	}
	h.respondUser(w, r, http.StatusCreated, user, err)
}

func (h *APIHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := h.users.ListUsers(r.Context(), service.ListUsersParams{
		Page:     parseInt(query.Get("page"), 1),
		PageSize: parseInt(query.Get("size"), 0),
		Sort:     query.Get("sort"),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, listUsersResponse{
		Items: toUserResponses(result.Items),
		Pagination: paginationResponse{
			Page:       result.Pagination.Page,
			PageSize:   result.Pagination.PageSize,
			TotalItems: result.Pagination.TotalItems,
			TotalPages: result.Pagination.TotalPages,
		},
	})
}

func (h *APIHandlers) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	query := r.URL.Query()
	result, err := h.users.SearchUsers(r.Context(), query.Get("name"), service.ListUsersParams{
		Page:     parseInt(query.Get("page"), 1),
		PageSize: parseInt(query.Get("size"), 0),
		Sort:     query.Get("sort"),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "failed to search users")
		return
	}
	respondJSON(w, http.StatusOK, searchUsersResponse{
		Items:    toUserResponses(result.Items),
		Page:     result.Page,
		PageSize: result.PageSize,
		HasNext:  result.HasNext,
	})
}

func (h *APIHandlers) handleCinemas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listCinemas(w, r)
	case http.MethodPost:
		var payload cinemaRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cinema, err := h.cinemas.Create(r.Context(), service.CinemaInput{
			Name:     payload.Name,
			City:     payload.City,
			Capacity: payload.Capacity,
		})
		if err != nil {
			h.writeServiceError(w, r, err, "failed to create cinema")
			return
		}
		respondJSON(w, http.StatusCreated, toCinemaResponse(cinema))
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *APIHandlers) listCinemas(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		cinemas []*domain.Cinema
		err     error
	)
	if visitor := query.Get("visitor"); visitor != "" {
		cinemas, err = h.cinemas.VisitedBy(r.Context(), visitor)
	} else {
		minCapacity := 0
		if v := query.Get("minCapacity"); v != "" {
			if minCapacity, err = strconv.Atoi(v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid minCapacity")
				return
			}
		}
		cinemas, err = h.cinemas.List(r.Context(), minCapacity)
	}
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list cinemas")
		return
	}
	items := make([]cinemaResponse, 0, len(cinemas))
	for _, c := range cinemas {
		items = append(items, toCinemaResponse(c))
	}
	respondJSON(w, http.StatusOK, itemsResponse[cinemaResponse]{Items: items})
}

func (h *APIHandlers) handleVisits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var payload visitRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cinema, err := h.cinemas.Visit(r.Context(), service.VisitInput{Email: payload.Email, Cinema: payload.Cinema})
	if err != nil {
		h.writeServiceError(w, r, err, "failed to record visit")
		return
	}
	respondJSON(w, http.StatusOK, toCinemaResponse(cinema))
}

func (h *APIHandlers) respondUser(w http.ResponseWriter, r *http.Request, status int, user *domain.User, err error) {
	if err != nil {
		h.writeServiceError(w, r, err, "user request failed")
		return
	}
	respondJSON(w, status, toUserResponse(user))
}

// writeServiceError maps service sentinels and data-access kinds onto HTTP
// statuses. Server-side failures are logged and answered with fallback.
func (h *APIHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(fallback, "error", err, "request_id", RequestID(r.Context()))
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	}
	switch dataaccess.KindOf(err) {
	case dataaccess.KindInvalidUsage:
		return http.StatusBadRequest
	case dataaccess.KindIntegrityViolation:
		return http.StatusConflict
	case dataaccess.KindPermissionDenied:
		return http.StatusForbidden
	case dataaccess.KindTransientResource:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
