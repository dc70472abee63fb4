package models

import "time"

// User is the identity record. Username is an email address and unique
// across all users. PasswordHash only ever holds bcrypt output.
type User struct {
	ID           int32
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}
