package domain

import "time"

// User is the account whose id becomes a session subject.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
