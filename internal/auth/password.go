package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const (
	bcryptCost        = 12
	minPasswordLength = 8
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	return hashWithCost(password, bcryptCost)
}

func hashWithCost(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// VerifyCredentials checks a login attempt. found=false still runs a
// bcrypt comparison so unknown emails take as long as wrong passwords.
func VerifyCredentials(password, hash string, found bool) error {
	if !found {
		dummyOnce.Do(func() {
			dummyHash, _ = hashWithCost("not-a-real-password", bcryptCost)
		})
		CheckPassword(password, dummyHash)
		return ErrInvalidCredentials
	}
	if !CheckPassword(password, hash) {
		return ErrInvalidCredentials
	}
	return nil
}
