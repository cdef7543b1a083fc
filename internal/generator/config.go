package generator

// Config drives the synthetic data generator.
type Config struct {
	NumUsers   int
	NumCinemas int
	MaxGenres  int
	// FriendsPerUser and VisitsPerUser are averages.
	FriendsPerUser float64
	VisitsPerUser  float64
	// PopularityBias is the chance a visit goes to one of the first few
	// cinemas, which keeps some venues busy.
	PopularityBias float64
	Seed           int64
}

// DefaultConfig returns baseline settings for a demo-sized movie graph.
func DefaultConfig() Config {
	return Config{
		NumUsers:       1000,
		NumCinemas:     25,
		MaxGenres:      3,
		FriendsPerUser: 2.5,
		VisitsPerUser:  1.5,
		PopularityBias: 0.4,
		Seed:           42,
	}
}
