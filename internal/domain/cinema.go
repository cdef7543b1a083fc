package domain

// Cinema is stored with the Theatre label.
type Cinema struct {
	ID       string
	Name     string
	City     string `graph:"city,omitempty"`
	Capacity int
	Visitors []*User `graph:"visitors,rel=VISITED,dir=incoming"`
}

func (Cinema) Labels() []string { return []string{"Theatre"} }
