package repository

import "context"

type AccountRepository interface {
	GetBalance(ctx context.Context, userID int32) (int64, error)
}
