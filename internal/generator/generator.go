package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vanshika/graphrepo/internal/service"
)

// Generator produces synthetic movie-service datasets for the bulk ingestor.
// The same seed always yields the same dataset.
type Generator struct {
	cfg           Config
	rand          *rand.Rand
	nameFragments nameFragments
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	defaults := DefaultConfig()
	if cfg.NumUsers <= 0 {
		cfg.NumUsers = defaults.NumUsers
	}
	if cfg.NumCinemas <= 0 {
		cfg.NumCinemas = defaults.NumCinemas
	}
	if cfg.MaxGenres <= 0 {
		cfg.MaxGenres = defaults.MaxGenres
	}
	if cfg.FriendsPerUser < 0 {
		cfg.FriendsPerUser = 0
	}
	if cfg.VisitsPerUser < 0 {
		cfg.VisitsPerUser = 0
	}
	cfg.PopularityBias = clampProbability(cfg.PopularityBias)
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:           cfg,
		rand:          rand.New(rand.NewSource(cfg.Seed)),
		nameFragments: defaultNameFragments(),
	}
}

// Generate synthesises users, cinemas and the relationships between them. It
// respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (service.Dataset, error) {
	users := make([]service.UserInput, g.cfg.NumUsers)
	for i := range users {
		if err := ctx.Err(); err != nil {
			return service.Dataset{}, err
		}
		first, last := g.pick(g.nameFragments.first), g.pick(g.nameFragments.last)
		email, err := g.randomEmail(first, last)
		if err != nil {
			return service.Dataset{}, err
		}
		born := time.Date(1950+g.rand.Intn(55), time.Month(1+g.rand.Intn(12)), 1+g.rand.Intn(28), 0, 0, 0, 0, time.UTC)
		users[i] = service.UserInput{
			Name:   first + " " + last,
			Email:  email,
			Born:   &born,
			Genres: g.randomGenres(),
		}
	}

	cinemas := make([]service.CinemaInput, g.cfg.NumCinemas)
	taken := make(map[string]int, g.cfg.NumCinemas)
	for i := range cinemas {
		name := g.pick(g.nameFragments.cinemaPrefixes) + " " + g.pick(g.nameFragments.cinemaNouns)
		taken[name]++
		if n := taken[name]; n > 1 {
			name = fmt.Sprintf("%s %d", name, n)
		}
		cinemas[i] = service.CinemaInput{
			Name:     name,
			City:     g.pick(g.nameFragments.cities),
			Capacity: 80 + g.rand.Intn(83)*10,
		}
	}

	friendships, err := g.friendships(ctx, users)
	if err != nil {
		return service.Dataset{}, err
	}
	visits, err := g.visits(ctx, users, cinemas)
	if err != nil {
		return service.Dataset{}, err
	}

	return service.Dataset{
		Users:       users,
		Cinemas:     cinemas,
		Friendships: friendships,
		Visits:      visits,
	}, nil
}

func (g *Generator) friendships(ctx context.Context, users []service.UserInput) ([]service.FriendshipInput, error) {
	if len(users) < 2 {
		return nil, nil
	}
	target := int(math.Round(float64(len(users)) * g.cfg.FriendsPerUser / 2))
	maxPairs := len(users) * (len(users) - 1) / 2
	if target > maxPairs {
		target = maxPairs
	}
	seen := make(map[[2]int]struct{}, target)
	out := make([]service.FriendshipInput, 0, target)
	for len(out) < target {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, b := g.rand.Intn(len(users)), g.rand.Intn(len(users))
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		if _, dup := seen[[2]int{a, b}]; dup {
			continue
		}
		seen[[2]int{a, b}] = struct{}{}
		out = append(out, service.FriendshipInput{Email: users[a].Email, FriendEmail: users[b].Email})
	}
	return out, nil
}

func (g *Generator) visits(ctx context.Context, users []service.UserInput, cinemas []service.CinemaInput) ([]service.VisitInput, error) {
	if len(users) == 0 || len(cinemas) == 0 {
		return nil, nil
	}
	target := int(math.Round(float64(len(users)) * g.cfg.VisitsPerUser))
	if maxVisits := len(users) * len(cinemas); target > maxVisits {
		target = maxVisits
	}
	popular := min(3, len(cinemas))
	seen := make(map[[2]int]struct{}, target)
	out := make([]service.VisitInput, 0, target)
	for len(out) < target {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		u := g.rand.Intn(len(users))
		c := g.rand.Intn(len(cinemas))
		if g.rand.Float64() < g.cfg.PopularityBias {
			c = g.rand.Intn(popular)
		}
		if _, dup := seen[[2]int{u, c}]; dup {
			continue
		}
		seen[[2]int{u, c}] = struct{}{}
		out = append(out, service.VisitInput{Email: users[u].Email, Cinema: cinemas[c].Name})
	}
	return out, nil
}

// randomEmail draws the unique part from the seeded source so datasets stay
// reproducible.
func (g *Generator) randomEmail(first, last string) (string, error) {
	id, err := uuid.NewRandomFromReader(g.rand)
	if err != nil {
		return "", fmt.Errorf("generate email id: %w", err)
	}
	local := strings.ToLower(first + "." + last + "." + id.String()[:8])
	return local + "@" + g.pick(g.nameFragments.domains), nil
}

func (g *Generator) randomGenres() []string {
	n := g.rand.Intn(g.cfg.MaxGenres + 1)
	perm := g.rand.Perm(len(g.nameFragments.genres))
	genres := make([]string, 0, n)
	for _, idx := range perm[:min(n, len(perm))] {
		genres = append(genres, g.nameFragments.genres[idx])
	}
	return genres
}

func (g *Generator) pick(options []string) string {
	return options[g.rand.Intn(len(options))]
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

type nameFragments struct {
	first          []string
	last           []string
	domains        []string
	genres         []string
	cinemaPrefixes []string
	cinemaNouns    []string
	cities         []string
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:          []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia", "Ava", "Ethan", "Zara"},
		last:           []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva", "Brown", "Lee"},
		domains:        []string{"example.com", "mail.com", "movies.test", "cinema.example.org"},
		genres:         []string{"Action", "Comedy", "Drama", "Horror", "Thriller", "Romance", "Documentary", "Animation", "Western", "Science Fiction"},
		cinemaPrefixes: []string{"Grand", "Royal", "Metro", "Union", "Capitol", "Regent", "Plaza", "Rialto", "Astor", "Lumiere"},
		cinemaNouns:    []string{"Cinema", "Theatre", "Pictures", "Kino", "Playhouse", "Screens"},
		cities:         []string{"Berlin", "Malmo", "London", "New York", "Seattle", "Austin", "Chicago", "Lisbon", "Denver", "Boston"},
	}
}
