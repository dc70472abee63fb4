package repository

import (
	"context"

	"github.com/honeynil/wallet-service/internal/models"
)

// UserUpdate carries a partial profile change. Nil fields are left
// untouched; PasswordHash, when set, is already hashed by the caller.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

type UserRepository interface {
	// CreateWithAccount inserts the user and its companion account in one
	// transaction, filling in the generated ids.
	CreateWithAccount(ctx context.Context, user *models.User, account *models.Account) error
	GetByID(ctx context.Context, id int32) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, id int32, update UserUpdate) error
	// Search returns users whose first or last name contains filter,
	// case-insensitively. An empty filter matches everyone.
	Search(ctx context.Context, filter string) ([]models.User, error)
}
