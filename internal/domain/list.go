package domain

// UserSummary is the name-and-email projection of a User used by listings.
type UserSummary struct {
	Name  string
	Email string
}

// UserRow is a flat row returned by reporting queries.
type UserRow struct {
	Name      string `graph:"name"`
	Email     string `graph:"email"`
	Interests int64  `graph:"interests"`
}
