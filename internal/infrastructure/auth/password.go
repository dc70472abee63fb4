package auth

import (
	"fmt"

	pkgerrors "github.com/honeynil/wallet-service/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword runs the plaintext through bcrypt with a fresh salt, so
// equal passwords produce distinct hashes. Plaintext must not travel past
// this boundary.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", pkgerrors.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext against a stored bcrypt hash.
// Any mismatch collapses into ErrInvalidCredentials.
func CheckPassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return pkgerrors.ErrInvalidCredentials
	}
	return nil
}
