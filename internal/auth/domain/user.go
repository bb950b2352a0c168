package domain

import "time"

// User is the directory identity a credential points at.
type User struct {
	ID        string
	Email     string
	Nickname  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
