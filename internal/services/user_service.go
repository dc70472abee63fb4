package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	stderrors "errors"

	"github.com/honeynil/wallet-service/internal/infrastructure/auth"
	"github.com/honeynil/wallet-service/internal/infrastructure/kafka"
	"github.com/honeynil/wallet-service/internal/infrastructure/redis"
	"github.com/honeynil/wallet-service/internal/models"
	"github.com/honeynil/wallet-service/internal/repository"
	pkgerrors "github.com/honeynil/wallet-service/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const (
	usersTopic      = "users"
	profileCacheTTL = 5 * time.Minute
	balanceCacheTTL = 5 * time.Minute
)

// ProfileUpdate is a partial profile change. Nil means "leave as is".
// Password is plaintext here and hashed before it reaches the store.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Password  *string
}

// BalancePolicy picks the starting balance for a fresh account. The
// default draws from a plain PRNG in [0, 10000) and must not be used for
// anything security-relevant.
type BalancePolicy func() int64

func DefaultBalancePolicy() int64 {
	return rand.Int63n(10000)
}

type UserService interface {
	Register(ctx context.Context, username, firstName, lastName, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	UpdateProfile(ctx context.Context, userID int32, update ProfileUpdate) error
	ListUsers(ctx context.Context, filter string) ([]models.User, error)
	GetUser(ctx context.Context, userID int32) (*models.User, error)
	GetBalance(ctx context.Context, userID int32) (int64, error)
}

type userService struct {
	userRepo       repository.UserRepository
	accountRepo    repository.AccountRepository
	redisClient    redis.RedisClient
	kafkaProducer  kafka.EventProducer
	issuer         *auth.TokenIssuer
	initialBalance BalancePolicy
}

func NewUserService(
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.EventProducer,
	issuer *auth.TokenIssuer,
	initialBalance BalancePolicy,
) *userService {
	if initialBalance == nil {
		initialBalance = DefaultBalancePolicy
	}
	return &userService{
		userRepo:       userRepo,
		accountRepo:    accountRepo,
		redisClient:    redisClient,
		kafkaProducer:  kafkaProducer,
		issuer:         issuer,
		initialBalance: initialBalance,
	}
}

func (s *userService) Register(ctx context.Context, username, firstName, lastName, password string) (string, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if existing != nil {
		span.SetStatus(codes.Error, "email already taken")
		slog.Warn("email already taken", "username", username, "existing_id", existing.ID)
		return "", pkgerrors.ErrEmailTaken
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user check failed")
		slog.Error("failed to check user existence", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to check user existence", pkgerrors.ErrInternal)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hash,
	}
	account := &models.Account{
		Balance: s.initialBalance(),
	}

	if err := s.userRepo.CreateWithAccount(ctx, user, account); err != nil {
		if stderrors.Is(err, pkgerrors.ErrEmailTaken) {
			span.SetStatus(codes.Error, "email already taken")
			return "", err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user in DB", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to create user", pkgerrors.ErrInternal)
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issuance failed")
		slog.Error("failed to issue token", "user_id", user.ID, "error", err)
		return "", err
	}

	s.sendEventAsync(user.ID, map[string]interface{}{
		"event_type":      "user_registered",
		"user_id":         user.ID,
		"username":        username,
		"initial_balance": account.Balance,
		"created_at":      time.Now().UTC().Format(time.RFC3339),
	})

	slog.Info("user registered successfully",
		"user_id", user.ID,
		"username", username,
		"initial_balance", account.Balance)
	return token, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			span.SetStatus(codes.Error, "user not found")
			slog.Warn("login for unknown user", "username", username)
			return "", pkgerrors.ErrUserNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		slog.Error("failed to look up user", "username", username, "error", err)
		return "", fmt.Errorf("%w: failed to look up user", pkgerrors.ErrInternal)
	}

	if err := auth.CheckPassword(password, user.PasswordHash); err != nil {
		span.SetStatus(codes.Error, "invalid password")
		slog.Warn("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issuance failed")
		slog.Error("failed to issue token", "user_id", user.ID, "error", err)
		return "", err
	}

	slog.Info("user logged in", "username", username, "user_id", user.ID)
	return token, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int32, update ProfileUpdate) error {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()

	repoUpdate := repository.UserUpdate{
		FirstName: update.FirstName,
		LastName:  update.LastName,
	}
	if update.Password != nil {
		// A new password is hashed here; plaintext never reaches the store.
		hash, err := auth.HashPassword(*update.Password)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "password hashing failed")
			slog.Error("failed to hash password", "user_id", userID, "error", err)
			return fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
		}
		repoUpdate.PasswordHash = &hash
	}

	if err := s.userRepo.Update(ctx, userID, repoUpdate); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile update failed")
		slog.Error("failed to update profile", "user_id", userID, "error", err)
		return err
	}

	if err := s.redisClient.Del(ctx, profileKey(userID)); err != nil {
		slog.Error("failed to invalidate profile cache", "user_id", userID, "error", err)
	}

	event := map[string]interface{}{
		"event_type": "profile_updated",
		"user_id":    userID,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if eventBytes, err := json.Marshal(event); err == nil {
		if err := s.kafkaProducer.Send(ctx, usersTopic, fmt.Sprintf("%d", userID), eventBytes); err != nil {
			slog.Error("failed to send profile event", "user_id", userID, "error", err)
		}
	}

	slog.Info("profile updated", "user_id", userID)
	return nil
}

func (s *userService) ListUsers(ctx context.Context, filter string) ([]models.User, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "ListUsers")
	defer span.End()

	users, err := s.userRepo.Search(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user search failed")
		slog.Error("failed to search users", "filter", filter, "error", err)
		return nil, fmt.Errorf("%w: failed to search users", pkgerrors.ErrInternal)
	}

	slog.Info("users listed", "filter", filter, "count", len(users))
	return users, nil
}

func (s *userService) GetUser(ctx context.Context, userID int32) (*models.User, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "GetUser")
	defer span.End()

	key := profileKey(userID)
	if cached, err := s.redisClient.Get(ctx, key); err == nil {
		var user models.User
		if err := json.Unmarshal([]byte(cached), &user); err != nil {
			slog.Error("failed to unmarshal cached profile", "user_id", userID, "error", err)
		} else {
			return &user, nil
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		slog.Error("failed to get user", "user_id", userID, "error", err)
		return nil, err
	}

	if userBytes, err := json.Marshal(user); err == nil {
		if err := s.redisClient.Set(ctx, key, string(userBytes), profileCacheTTL); err != nil {
			slog.Error("failed to cache profile", "user_id", userID, "error", err)
		}
	}
	return user, nil
}

func (s *userService) GetBalance(ctx context.Context, userID int32) (int64, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	key := balanceKey(userID)
	if cached, err := s.redisClient.Get(ctx, key); err == nil {
		var balance int64
		if err := json.Unmarshal([]byte(cached), &balance); err != nil {
			slog.Error("failed to unmarshal cached balance", "user_id", userID, "error", err)
		} else {
			return balance, nil
		}
	}

	balance, err := s.accountRepo.GetBalance(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "balance lookup failed")
		slog.Error("failed to get balance", "user_id", userID, "error", err)
		return 0, err
	}

	if err := s.redisClient.Set(ctx, key, balance, balanceCacheTTL); err != nil {
		slog.Error("failed to cache balance", "user_id", userID, "error", err)
	}
	return balance, nil
}

// sendEventAsync publishes best-effort: registration must not fail because
// the broker is down.
func (s *userService) sendEventAsync(userID int32, event map[string]interface{}) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal kafka event", "user_id", userID, "error", err)
		return
	}
	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.kafkaProducer.Send(context.Background(), usersTopic, fmt.Sprintf("%d", userID), eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send user event after retries", "user_id", userID)
	}()
}

func profileKey(userID int32) string {
	return fmt.Sprintf("user:%d:profile", userID)
}

func balanceKey(userID int32) string {
	return fmt.Sprintf("user:%d:balance", userID)
}
