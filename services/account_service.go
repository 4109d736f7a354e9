// services/account_service.go
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/wfunc/cardroom/persistence"
)

var (
	ErrMissingCredentials = errors.New("missing username or password")
	ErrNotRegistered      = errors.New("user not registered")
	ErrWrongPassword      = errors.New("wrong password")
)

// AccountService maps usernames to password hashes through the persistence
// store. Authentication strength is deliberately minimal: hex SHA-256, no
// salt, matching what the frontend expects.
type AccountService struct {
	store persistence.Store
}

func NewAccountService(store persistence.Store) *AccountService {
	return &AccountService{store: store}
}

func HashPassword(password string) string {
	digest := sha256.Sum256([]byte(password))
	return hex.EncodeToString(digest[:])
}

func (s *AccountService) Register(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	return s.store.CreateUser(username, HashPassword(password))
}

// Login verifies the credentials. An unknown user reports ErrNotRegistered so
// the UI can offer auto-registration.
func (s *AccountService) Login(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	hash, err := s.store.GetUserHash(username)
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return ErrNotRegistered
		}
		return err
	}
	if hash != HashPassword(password) {
		return ErrWrongPassword
	}
	return nil
}
