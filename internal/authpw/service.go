// Package authpw provides email/password authentication for editor accounts.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"clubhouse/api/internal/rbac"
	"clubhouse/api/internal/store"
	"clubhouse/api/internal/util"
)

// MinPasswordLength is enforced when passwords are set.
const MinPasswordLength = 8

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid account input")
)

// AccountStore defines the storage interface for auth
type AccountStore interface {
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	UpsertAccount(ctx context.Context, account store.Account) error
}

type Service struct {
	store AccountStore
	cost  int
}

func NewService(accounts AccountStore) *Service {
	return &Service{store: accounts, cost: bcrypt.DefaultCost}
}

// CreateAccountRequest contains account parameters. An existing account with the
// same email is updated in place.
type CreateAccountRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (store.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return store.Account{}, fmt.Errorf("%w: email %q", ErrInvalidInput, req.Email)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return store.Account{}, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}

	hash, err := hashPassword(req.Password, s.cost)
	if err != nil {
		return store.Account{}, err
	}

	account := store.Account{
		ID:           util.NewID("acc"),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         string(rbac.Normalize(req.Role)),
	}
	if existing, err := s.store.GetAccountByEmail(ctx, email); err == nil {
		account.ID = existing.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.Account{}, fmt.Errorf("look up account: %w", err)
	}
	if err := s.store.UpsertAccount(ctx, account); err != nil {
		return store.Account{}, fmt.Errorf("save account: %w", err)
	}
	return account, nil
}

type SignInRequest struct {
	Email    string
	Password string
}

// SignIn returns the account when the password matches.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return store.Account{}, ErrInvalidCredentials
	}

	account, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Account{}, ErrInvalidCredentials
		}
		return store.Account{}, fmt.Errorf("look up account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return store.Account{}, ErrInvalidCredentials
	}
	account.Role = string(rbac.Normalize(account.Role))
	return account, nil
}

// HashPassword returns a bcrypt hash suitable for the accounts table.
func HashPassword(password string) (string, error) {
	return hashPassword(password, bcrypt.DefaultCost)
}

func hashPassword(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
