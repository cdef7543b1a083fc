package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/graphrepo/internal/dataaccess"
	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/service"
)

type stubUserService struct {
	users      map[string]*domain.User
	registered []service.UserInput
	listParams service.ListUsersParams
	searched   string
	err        error
}

func newStubUserService() *stubUserService {
	return &stubUserService{users: map[string]*domain.User{
		"4:db:1": {ID: "4:db:1", Name: "Michael", Email: "michael@example.com", Genres: []domain.Genre{{Name: "Thriller"}}},
		"4:db:2": {ID: "4:db:2", Name: "Gerrit"},
	}}
}

func (s *stubUserService) Register(ctx context.Context, input service.UserInput) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.registered = append(s.registered, input)
	return &domain.User{ID: "4:db:99", Name: input.Name, Email: input.Email, Born: input.Born}, nil
}

func (s *stubUserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, service.ErrNotFound)
	}
	return u, nil
}

func (s *stubUserService) Rename(ctx context.Context, id, name string) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name = name
	return u, nil
}

func (s *stubUserService) NotInterestedIn(ctx context.Context, id, genre string) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var kept []domain.Genre
	for _, g := range u.Genres {
		if g.Name != genre {
			kept = append(kept, g)
		}
	}
	u.Genres = kept
	return u, nil
}

func (s *stubUserService) Befriend(ctx context.Context, id, friendID string) (*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := s.Get(ctx, friendID)
	if err != nil {
		return nil, err
	}
	u.Friends = append(u.Friends, f)
	return u, nil
}

func (s *stubUserService) Friends(ctx context.Context, id string) ([]*domain.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Friends, nil
}

func (s *stubUserService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	delete(s.users, id)
	return nil
}

func (s *stubUserService) ListUsers(ctx context.Context, params service.ListUsersParams) (service.UsersPage, error) {
	if s.err != nil {
		return service.UsersPage{}, s.err
	}
	s.listParams = params
	return service.UsersPage{
		Items:      []*domain.User{s.users["4:db:1"]},
		Pagination: service.PaginationMeta{Page: params.Page, PageSize: 5, TotalItems: 11, TotalPages: 3},
	}, nil
}

func (s *stubUserService) SearchUsers(ctx context.Context, fragment string, params service.ListUsersParams) (service.UsersSlice, error) {
	s.searched = fragment
	return service.UsersSlice{Items: []*domain.User{s.users["4:db:1"]}, Page: 1, PageSize: 1, HasNext: true}, nil
}

type stubCinemaService struct {
	minCapacity int
	visitor     string
	visits      []service.VisitInput
}

func (s *stubCinemaService) List(ctx context.Context, minCapacity int) ([]*domain.Cinema, error) {
	s.minCapacity = minCapacity
	return []*domain.Cinema{{ID: "4:db:c1", Name: "Babylon", Capacity: 400}}, nil
}

func (s *stubCinemaService) Create(ctx context.Context, input service.CinemaInput) (*domain.Cinema, error) {
	if input.Name == "Babylon" {
		return nil, fmt.Errorf("%w: cinema exists", service.ErrConflict)
	}
	return &domain.Cinema{ID: "4:db:c2", Name: input.Name, City: input.City, Capacity: input.Capacity}, nil
}

func (s *stubCinemaService) Visit(ctx context.Context, input service.VisitInput) (*domain.Cinema, error) {
	s.visits = append(s.visits, input)
	return &domain.Cinema{ID: "4:db:c1", Name: input.Cinema, Visitors: []*domain.User{{Name: "Michael"}}}, nil
}

func (s *stubCinemaService) VisitedBy(ctx context.Context, name string) ([]*domain.Cinema, error) {
	s.visitor = name
	return nil, nil
}

func newTestRouter(users UserService, cinemas CinemaService, deps RouterDependencies) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps.API = NewAPIHandlers(logger, users, cinemas)
	return NewRouter(logger, deps)
}

func serve(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegisterUser(t *testing.T) {
	users := newStubUserService()
	router := newTestRouter(users, &stubCinemaService{}, RouterDependencies{})

	rec := serve(t, router, http.MethodPost, "/users", map[string]any{
		"name": "Ann", "email": "ann@example.com", "born": "1990-05-17", "genres": []string{"Drama"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/users/4:db:99", rec.Header().Get("Location"))

	resp := decode[userResponse](t, rec)
	assert.Equal(t, "Ann", resp.Name)
	assert.Equal(t, "1990-05-17", resp.Born)
	require.Len(t, users.registered, 1)
	assert.Equal(t, []string{"Drama"}, users.registered[0].Genres)

	rec = serve(t, router, http.MethodPost, "/users", map[string]any{"name": "Ann", "born": "17.05.1990"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, router, http.MethodPost, "/users", map[string]any{"name": "Ann", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	users.err = fmt.Errorf("%w: email taken", service.ErrConflict)
	rec = serve(t, router, http.MethodPost, "/users", map[string]any{"name": "Ann"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListUsersPassesPaging(t *testing.T) {
	users := newStubUserService()
	router := newTestRouter(users, &stubCinemaService{}, RouterDependencies{})

	rec := serve(t, router, http.MethodGet, "/users?page=2&size=5&sort=name,desc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ListUsersParams{Page: 2, PageSize: 5, Sort: "name,desc"}, users.listParams)

	resp := decode[listUsersResponse](t, rec)
	assert.Equal(t, paginationResponse{Page: 2, PageSize: 5, TotalItems: 11, TotalPages: 3}, resp.Pagination)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, []string{"Thriller"}, resp.Items[0].Genres)
}

func TestUserResource(t *testing.T) {
	users := newStubUserService()
	router := newTestRouter(users, &stubCinemaService{}, RouterDependencies{})

	rec := serve(t, router, http.MethodGet, "/users/4:db:1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Michael", decode[userResponse](t, rec).Name)

	rec = serve(t, router, http.MethodGet, "/users/4:db:404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, router, http.MethodPatch, "/users/4:db:1", map[string]string{"name": "Mike"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mike", decode[userResponse](t, rec).Name)

	rec = serve(t, router, http.MethodPost, "/users/4:db:1/friends", map[string]string{"friendId": "4:db:2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"4:db:2"}, decode[userResponse](t, rec).Friends)

	rec = serve(t, router, http.MethodGet, "/users/4:db:1/friends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[itemsResponse[userResponse]](t, rec).Items, 1)

	rec = serve(t, router, http.MethodDelete, "/users/4:db:1/interests/Thriller", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[userResponse](t, rec).Genres)

	rec = serve(t, router, http.MethodDelete, "/users/4:db:2", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, router, http.MethodPut, "/users/4:db:1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, PATCH, DELETE", rec.Header().Get("Allow"))

	rec = serve(t, router, http.MethodGet, "/users/4:db:1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchUsers(t *testing.T) {
	users := newStubUserService()
	router := newTestRouter(users, &stubCinemaService{}, RouterDependencies{})

	rec := serve(t, router, http.MethodGet, "/users/search?name=mich&size=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mich", users.searched)
	resp := decode[searchUsersResponse](t, rec)
	assert.True(t, resp.HasNext)
	assert.Len(t, resp.Items, 1)
}

func TestCinemaEndpoints(t *testing.T) {
	cinemas := &stubCinemaService{}
	router := newTestRouter(newStubUserService(), cinemas, RouterDependencies{})

	rec := serve(t, router, http.MethodGet, "/cinemas?minCapacity=300", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 300, cinemas.minCapacity)
	assert.Len(t, decode[itemsResponse[cinemaResponse]](t, rec).Items, 1)

	rec = serve(t, router, http.MethodGet, "/cinemas?minCapacity=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, router, http.MethodGet, "/cinemas?visitor=Michael", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Michael", cinemas.visitor)
	assert.Empty(t, decode[itemsResponse[cinemaResponse]](t, rec).Items)

	rec = serve(t, router, http.MethodPost, "/cinemas", cinemaRequest{Name: "Odeon", Capacity: 200})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Odeon", decode[cinemaResponse](t, rec).Name)

	rec = serve(t, router, http.MethodPost, "/cinemas", cinemaRequest{Name: "Babylon"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, router, http.MethodPost, "/cinemas/visits", visitRequest{Email: "michael@example.com", Cinema: "Babylon"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Michael"}, decode[cinemaResponse](t, rec).Visitors)
	require.Len(t, cinemas.visits, 1)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", service.ErrInvalidInput):                              http.StatusBadRequest,
		fmt.Errorf("x: %w", service.ErrNotFound):                                  http.StatusNotFound,
		dataaccess.New(dataaccess.KindIntegrityViolation, "save", "duplicate"):    http.StatusConflict,
		dataaccess.New(dataaccess.KindTransientResource, "load", "leader switch"): http.StatusServiceUnavailable,
		dataaccess.New(dataaccess.KindPermissionDenied, "load", "forbidden"):      http.StatusForbidden,
		dataaccess.New(dataaccess.KindInvalidUsage, "query", "bad sort"):          http.StatusBadRequest,
		dataaccess.New(dataaccess.KindIncorrectResultSize, "query", "2 rows"):     http.StatusInternalServerError,
		errors.New("boom"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestServerErrorsHideDetails(t *testing.T) {
	users := newStubUserService()
	users.err = dataaccess.New(dataaccess.KindResourceFailure, "query", "disk on fire")
	router := newTestRouter(users, &stubCinemaService{}, RouterDependencies{})

	rec := serve(t, router, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestHealthz(t *testing.T) {
	healthy := newTestRouter(newStubUserService(), &stubCinemaService{}, RouterDependencies{
		Health: HealthFunc(func(context.Context) error { return nil }),
	})
	assert.Equal(t, http.StatusOK, serve(t, healthy, http.MethodGet, "/healthz", nil).Code)

	degraded := newTestRouter(newStubUserService(), &stubCinemaService{}, RouterDependencies{
		Health: HealthFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec := serve(t, degraded, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestRequestIDs(t *testing.T) {
	router := newTestRouter(newStubUserService(), &stubCinemaService{}, RouterDependencies{})

	rec := serve(t, router, http.MethodGet, "/healthz", nil)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-me", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := newTestRouter(newStubUserService(), &stubCinemaService{}, RouterDependencies{Metrics: reg})

	serve(t, router, http.MethodGet, "/users/4:db:1", nil)
	rec := serve(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `graphrepo_http_requests_total{code="200",method="GET",route="/users/{id}"} 1`)
}

func TestCORS(t *testing.T) {
	router := newTestRouter(newStubUserService(), &stubCinemaService{}, RouterDependencies{
		AllowedOrigins: ParseAllowedOrigins(" http://localhost:3000 , ,"),
	})

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
