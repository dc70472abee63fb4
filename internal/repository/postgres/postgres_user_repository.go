package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/honeynil/wallet-service/internal/infrastructure/observability"
	"github.com/honeynil/wallet-service/internal/models"
	"github.com/honeynil/wallet-service/internal/repository"
	pkgerrors "github.com/honeynil/wallet-service/pkg/errors"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateWithAccount inserts the user row and its account row inside one
// transaction, so a crash can never leave a user without an account.
// A duplicate username surfaces as ErrEmailTaken.
func (r *PostgresUserRepository) CreateWithAccount(ctx context.Context, user *models.User, account *models.Account) (err error) {
	start := time.Now()
	defer func() { observability.ObserveRepository("CreateWithAccount", start, err) }()

	if user == nil {
		return pkgerrors.ErrNilUser
	}
	if account == nil {
		return pkgerrors.ErrNilAccount
	}
	if user.Username == "" {
		return fmt.Errorf("%w: username is required", pkgerrors.ErrInvalidInput)
	}
	if user.PasswordHash == "" {
		return fmt.Errorf("%w: password_hash is required", pkgerrors.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	const userQuery = `
	INSERT INTO users (username, first_name, last_name, password_hash)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, userQuery,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return pkgerrors.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	const accountQuery = `
	INSERT INTO accounts (user_id, balance)
	VALUES ($1, $2)
	RETURNING id, created_at
	`
	account.UserID = user.ID
	err = tx.QueryRowContext(ctx, accountQuery, account.UserID, account.Balance).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int32) (user *models.User, err error) {
	start := time.Now()
	defer func() { observability.ObserveRepository("GetByID", start, err) }()

	const query = `SELECT id, username, first_name, last_name, password_hash, created_at FROM users WHERE id = $1`
	var u models.User
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (user *models.User, err error) {
	start := time.Now()
	defer func() { observability.ObserveRepository("GetByUsername", start, err) }()

	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrInvalidInput)
	}

	const query = `SELECT id, username, first_name, last_name, password_hash, created_at FROM users WHERE username = $1`
	var u models.User
	err = r.db.QueryRowContext(ctx, query, username).Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &u, nil
}

// Update applies only the supplied fields. A nil-only update is a no-op.
func (r *PostgresUserRepository) Update(ctx context.Context, id int32, update repository.UserUpdate) (err error) {
	start := time.Now()
	defer func() { observability.ObserveRepository("Update", start, err) }()

	set := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if update.FirstName != nil {
		args = append(args, *update.FirstName)
		set = append(set, fmt.Sprintf("first_name = $%d", len(args)))
	}
	if update.LastName != nil {
		args = append(args, *update.LastName)
		set = append(set, fmt.Sprintf("last_name = $%d", len(args)))
	}
	if update.PasswordHash != nil {
		args = append(args, *update.PasswordHash)
		set = append(set, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(set, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

// Search matches the filter as a case-insensitive substring of the first
// or last name (ILIKE). Password hashes are not selected.
func (r *PostgresUserRepository) Search(ctx context.Context, filter string) (users []models.User, err error) {
	start := time.Now()
	defer func() { observability.ObserveRepository("Search", start, err) }()

	const query = `
	SELECT id, username, first_name, last_name, created_at
	FROM users
	WHERE first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%'
	ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users = make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err = rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}
