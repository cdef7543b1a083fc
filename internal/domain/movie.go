package domain

// Movie is a film in the catalogue.
type Movie struct {
	ID       string
	Title    string
	Released int
	Tagline  string  `graph:"tagline,omitempty"`
	Genres   []Genre `graph:"genres,rel=IN_GENRE"`
}

// Actor played in movies.
type Actor struct {
	ID     string
	Name   string
	Movies []Movie `graph:"movies,rel=ACTED_IN"`
}

// Rating is a user's score for a movie.
type Rating struct {
	ID      string
	Stars   int
	Comment string `graph:"comment,omitempty"`
	User    *User  `graph:"user,rel=RATED,dir=incoming"`
	Movie   *Movie `graph:"movie,rel=RATES"`
}
