package services

import (
	"errors"
	"testing"

	"github.com/wfunc/cardroom/persistence"
)

func TestHashPassword_StableHex(t *testing.T) {
	// SHA-256("secret"), hex encoded.
	expected := "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b"
	if got := HashPassword("secret"); got != expected {
		t.Errorf("Expected %s, got %s", expected, got)
	}
	if HashPassword("secret") != HashPassword("secret") {
		t.Error("Hashing must be deterministic")
	}
}

func TestRegister(t *testing.T) {
	store := newMockStore()
	accounts := NewAccountService(store)

	if err := accounts.Register("", "pw"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
	if err := accounts.Register("alice", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}

	if err := accounts.Register("alice", "pw"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := accounts.Register("alice", "other"); !errors.Is(err, persistence.ErrUserExists) {
		t.Errorf("Expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	store := newMockStore()
	accounts := NewAccountService(store)
	accounts.Register("alice", "pw")

	if err := accounts.Login("alice", "pw"); err != nil {
		t.Errorf("Login failed: %v", err)
	}
	if err := accounts.Login("alice", "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("Expected ErrWrongPassword, got %v", err)
	}
	if err := accounts.Login("bob", "pw"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Expected ErrNotRegistered, got %v", err)
	}
}
