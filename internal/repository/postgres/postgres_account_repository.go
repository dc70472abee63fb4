package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/honeynil/wallet-service/internal/infrastructure/observability"
	pkgerrors "github.com/honeynil/wallet-service/pkg/errors"
)

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) GetBalance(ctx context.Context, userID int32) (balance int64, err error) {
	start := time.Now()
	defer func() { observability.ObserveRepository("GetBalance", start, err) }()

	const query = `SELECT balance FROM accounts WHERE user_id = $1`
	err = r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, pkgerrors.ErrAccountNotFound
	case err != nil:
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}
