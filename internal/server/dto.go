package server

import (
	"fmt"
	"time"

	"github.com/vanshika/graphrepo/internal/domain"
	"github.com/vanshika/graphrepo/internal/service"
)

type userRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Born   string   `json:"born,omitempty"`
	Genres []string `json:"genres,omitempty"`
}

func (req userRequest) toServiceInput() (service.UserInput, error) {
	input := service.UserInput{
		Name:   req.Name,
		Email:  req.Email,
		Genres: req.Genres,
	}
	if req.Born != "" {
		born, err := time.Parse(time.DateOnly, req.Born)
		if err != nil {
			return service.UserInput{}, fmt.Errorf("born must be a YYYY-MM-DD date: %w", err)
		}
		input.Born = &born
	}
	return input, nil
}

type renameRequest struct {
	Name string `json:"name"`
}

type friendRequest struct {
	FriendID string `json:"friendId"`
}

type cinemaRequest struct {
	Name     string `json:"name"`
	City     string `json:"city,omitempty"`
	Capacity int    `json:"capacity"`
}

type visitRequest struct {
	Email  string `json:"email"`
	Cinema string `json:"cinema"`
}

type userResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email,omitempty"`
	Born      string   `json:"born,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	Genres    []string `json:"genres"`
	Friends   []string `json:"friends"`
}

type paginationResponse struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

type listUsersResponse struct {
	Items      []userResponse     `json:"items"`
	Pagination paginationResponse `json:"pagination"`
}

type searchUsersResponse struct {
	Items    []userResponse `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	HasNext  bool           `json:"hasNext"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

type cinemaResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	City     string   `json:"city,omitempty"`
	Capacity int      `json:"capacity"`
	Visitors []string `json:"visitors,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: formatTime(u.CreatedAt),
		Genres:    make([]string, 0, len(u.Genres)),
		Friends:   make([]string, 0, len(u.Friends)),
	}
	if u.Born != nil {
		resp.Born = u.Born.UTC().Format(time.DateOnly)
	}
	for _, g := range u.Genres {
		resp.Genres = append(resp.Genres, g.Name)
	}
	for _, f := range u.Friends {
		if f != nil {
			resp.Friends = append(resp.Friends, f.ID)
		}
	}
	return resp
}

func toUserResponses(users []*domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toCinemaResponse(c *domain.Cinema) cinemaResponse {
	resp := cinemaResponse{
		ID:       c.ID,
		Name:     c.Name,
		City:     c.City,
		Capacity: c.Capacity,
	}
	for _, v := range c.Visitors {
		if v != nil {
			resp.Visitors = append(resp.Visitors, v.Name)
		}
	}
	return resp
}
