package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/honeynil/wallet-service/internal/infrastructure/auth"
	"github.com/honeynil/wallet-service/internal/infrastructure/redis"
	"github.com/honeynil/wallet-service/internal/models"
	"github.com/honeynil/wallet-service/internal/repository"
	pkgerrors "github.com/honeynil/wallet-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu           sync.Mutex
	users        map[string]*models.User
	accounts     []*models.Account
	updates      []repository.UserUpdate
	nextID       int32
	getByIDCalls int
	searchResult []models.User
	searchFilter string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User), nextID: 1}
}

func (f *fakeUserRepo) CreateWithAccount(_ context.Context, user *models.User, account *models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return pkgerrors.ErrEmailTaken
	}
	user.ID = f.nextID
	f.nextID++
	account.UserID = user.ID
	f.users[user.Username] = user
	f.accounts = append(f.accounts, account)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int32) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByIDCalls++
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, id int32, update repository.UserUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	for _, u := range f.users {
		if u.ID == id {
			if update.FirstName != nil {
				u.FirstName = *update.FirstName
			}
			if update.LastName != nil {
				u.LastName = *update.LastName
			}
			if update.PasswordHash != nil {
				u.PasswordHash = *update.PasswordHash
			}
			return nil
		}
	}
	return pkgerrors.ErrUserNotFound
}

func (f *fakeUserRepo) Search(_ context.Context, filter string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchFilter = filter
	return f.searchResult, nil
}

type fakeAccountRepo struct {
	balances map[int32]int64
	calls    int
}

func (f *fakeAccountRepo) GetBalance(_ context.Context, userID int32) (int64, error) {
	f.calls++
	balance, ok := f.balances[userID]
	if !ok {
		return 0, pkgerrors.ErrAccountNotFound
	}
	return balance, nil
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.data[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return val, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeRedis) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeRedis) Close() error { return nil }

type fakeProducer struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeProducer) Send(_ context.Context, _ string, _ string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, value)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func fixedBalance(v int64) BalancePolicy {
	return func() int64 { return v }
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		issuer := auth.NewTokenIssuer("test-secret")
		svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(4242))

		token, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		userID, err := issuer.Verify(token)
		require.NoError(t, err)

		stored := userRepo.users["a@b.com"]
		require.NotNil(t, stored)
		assert.Equal(t, stored.ID, userID)
		assert.Equal(t, "Sam", stored.FirstName)
		assert.Equal(t, "Doe", stored.LastName)
		assert.NotEqual(t, "pw123", stored.PasswordHash)
		assert.NoError(t, auth.CheckPassword("pw123", stored.PasswordHash))

		require.Len(t, userRepo.accounts, 1)
		assert.Equal(t, int64(4242), userRepo.accounts[0].Balance)
		assert.Equal(t, stored.ID, userRepo.accounts[0].UserID)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		issuer := auth.NewTokenIssuer("test-secret")
		svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))

		_, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		require.NoError(t, err)

		token, err := svc.Register(ctx, "a@b.com", "Other", "Name", "pw456")
		assert.ErrorIs(t, err, pkgerrors.ErrEmailTaken)
		assert.Empty(t, token)
		assert.Len(t, userRepo.users, 1)
		assert.Len(t, userRepo.accounts, 1)
	})

	t.Run("MissingSecret", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, auth.NewTokenIssuer(""), fixedBalance(1))

		token, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		assert.ErrorIs(t, err, pkgerrors.ErrMissingSecret)
		assert.Empty(t, token)
	})

	t.Run("DefaultBalanceRange", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			balance := DefaultBalancePolicy()
			assert.GreaterOrEqual(t, balance, int64(0))
			assert.Less(t, balance, int64(10000))
		}
	})
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	issuer := auth.NewTokenIssuer("test-secret")

	setup := func(t *testing.T) (*fakeUserRepo, UserService) {
		userRepo := newFakeUserRepo()
		svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))
		_, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		require.NoError(t, err)
		return userRepo, svc
	}

	t.Run("Success", func(t *testing.T) {
		userRepo, svc := setup(t)

		token, err := svc.Login(ctx, "a@b.com", "pw123")
		require.NoError(t, err)

		userID, err := issuer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userRepo.users["a@b.com"].ID, userID)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, svc := setup(t)

		token, err := svc.Login(ctx, "x@y.com", "pw123")
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
		assert.Empty(t, token)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, svc := setup(t)

		token, err := svc.Login(ctx, "a@b.com", "wrong")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.Empty(t, token)
	})
}

func TestUserService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	issuer := auth.NewTokenIssuer("test-secret")

	t.Run("PartialUpdate", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))
		_, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		require.NoError(t, err)
		userID := userRepo.users["a@b.com"].ID

		firstName := "Samuel"
		err = svc.UpdateProfile(ctx, userID, ProfileUpdate{FirstName: &firstName})
		require.NoError(t, err)

		require.Len(t, userRepo.updates, 1)
		assert.NotNil(t, userRepo.updates[0].FirstName)
		assert.Nil(t, userRepo.updates[0].LastName)
		assert.Nil(t, userRepo.updates[0].PasswordHash)

		stored := userRepo.users["a@b.com"]
		assert.Equal(t, "Samuel", stored.FirstName)
		assert.Equal(t, "Doe", stored.LastName)
		assert.NoError(t, auth.CheckPassword("pw123", stored.PasswordHash))
	})

	t.Run("PasswordIsRehashed", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))
		_, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		require.NoError(t, err)
		userID := userRepo.users["a@b.com"].ID

		newPassword := "newpw456"
		err = svc.UpdateProfile(ctx, userID, ProfileUpdate{Password: &newPassword})
		require.NoError(t, err)

		require.Len(t, userRepo.updates, 1)
		require.NotNil(t, userRepo.updates[0].PasswordHash)
		assert.NotEqual(t, newPassword, *userRepo.updates[0].PasswordHash)

		stored := userRepo.users["a@b.com"]
		assert.NoError(t, auth.CheckPassword("newpw456", stored.PasswordHash))
		assert.ErrorIs(t, auth.CheckPassword("pw123", stored.PasswordHash), pkgerrors.ErrInvalidCredentials)
	})

	t.Run("InvalidatesProfileCache", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		cache := newFakeRedis()
		svc := NewUserService(userRepo, &fakeAccountRepo{}, cache, &fakeProducer{}, issuer, fixedBalance(1))
		_, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		require.NoError(t, err)
		userID := userRepo.users["a@b.com"].ID

		_, err = svc.GetUser(ctx, userID)
		require.NoError(t, err)
		_, err = cache.Get(ctx, profileKey(userID))
		require.NoError(t, err)

		lastName := "Smith"
		err = svc.UpdateProfile(ctx, userID, ProfileUpdate{LastName: &lastName})
		require.NoError(t, err)

		_, err = cache.Get(ctx, profileKey(userID))
		assert.ErrorIs(t, err, redis.ErrKeyNotFound)
	})
}

func TestUserService_ListUsers(t *testing.T) {
	ctx := context.Background()
	userRepo := newFakeUserRepo()
	userRepo.searchResult = []models.User{
		{ID: 1, Username: "a@b.com", FirstName: "Sam", LastName: "Doe"},
	}
	svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, auth.NewTokenIssuer("test-secret"), fixedBalance(1))

	users, err := svc.ListUsers(ctx, "Sam")
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "Sam", userRepo.searchFilter)
}

func TestUserService_GetUser(t *testing.T) {
	ctx := context.Background()
	issuer := auth.NewTokenIssuer("test-secret")

	t.Run("CachesProfile", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		svc := NewUserService(userRepo, &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))
		_, err := svc.Register(ctx, "a@b.com", "Sam", "Doe", "pw123")
		require.NoError(t, err)
		userID := userRepo.users["a@b.com"].ID

		first, err := svc.GetUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", first.Username)
		assert.Equal(t, 1, userRepo.getByIDCalls)

		second, err := svc.GetUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, first.Username, second.Username)
		assert.Equal(t, 1, userRepo.getByIDCalls)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc := NewUserService(newFakeUserRepo(), &fakeAccountRepo{}, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))

		_, err := svc.GetUser(ctx, 99)
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
	})
}

func TestUserService_GetBalance(t *testing.T) {
	ctx := context.Background()
	issuer := auth.NewTokenIssuer("test-secret")

	t.Run("CachesBalance", func(t *testing.T) {
		accountRepo := &fakeAccountRepo{balances: map[int32]int64{1: 7777}}
		svc := NewUserService(newFakeUserRepo(), accountRepo, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))

		balance, err := svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7777), balance)
		assert.Equal(t, 1, accountRepo.calls)

		balance, err = svc.GetBalance(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7777), balance)
		assert.Equal(t, 1, accountRepo.calls)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		accountRepo := &fakeAccountRepo{balances: map[int32]int64{}}
		svc := NewUserService(newFakeUserRepo(), accountRepo, newFakeRedis(), &fakeProducer{}, issuer, fixedBalance(1))

		_, err := svc.GetBalance(ctx, 2)
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
	})
}
