package domain

import "time"

// User is a person who registered with the movie service.
type User struct {
	ID        string
	Name      string
	Email     string `graph:"emailAddress,omitempty"`
	Born      *time.Time
	CreatedAt time.Time
	Genres    []Genre `graph:"interests,rel=INTERESTED"`
	Friends   []*User `graph:"friends,rel=FRIEND_OF,dir=undirected"`
}

func (User) Labels() []string { return []string{"User", "Person"} }

// Genre is a movie genre users can be interested in.
type Genre struct {
	ID   string
	Name string
}

func (Genre) Labels() []string { return []string{"Genre"} }
