package models

import "time"

// Account is the one-to-one balance companion of a User, created in the
// same transaction as the user row. Balance is an integer amount.
type Account struct {
	ID        int32
	UserID    int32
	Balance   int64
	CreatedAt time.Time
}
