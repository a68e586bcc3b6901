package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	domainerrors "tasklist/internal/domain/errors"
	"tasklist/internal/domain/models"

	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users     UserRepository
	tokens    TokenIssuer
	cost      int
	dummyHash []byte
}

// NewAuthService hashes passwords with the given bcrypt cost; a cost outside
// bcrypt's range falls back to bcrypt.DefaultCost.
func NewAuthService(users UserRepository, tokens TokenIssuer, cost int) (*AuthService, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// Compared against when the email is unknown so both login failures cost
	// one bcrypt round.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:     users,
		tokens:    tokens,
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.AuthResult, error) {
	name = NormalizeName(name)
	email = NormalizeEmail(email)

	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, domainerrors.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	if existing != nil {
		return nil, domainerrors.ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateEmail) {
			return nil, domainerrors.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	log.Println("[SUCCESS] user registered:", user.ID)
	return &models.AuthResult{User: user, Token: token}, nil
}

// Login returns ErrInvalidCredentials for both an unknown email and a wrong
// password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domainerrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domainerrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &models.AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user by id: %w", err)
	}
	return user, nil
}

func validateRegistration(name, email, password string) error {
	verr := domainerrors.NewValidationError()

	switch n := runeLen(name); {
	case n < MinNameLength || n > MaxNameLength:
		verr.Add("name", fmt.Sprintf("name must be between %d and %d characters", MinNameLength, MaxNameLength), name)
	case !IsPersonName(name):
		verr.Add("name", "name may only contain letters and spaces", name)
	}

	if !isEmail(email) {
		verr.Add("email", "must be a valid email", email)
	}

	switch {
	case len(password) < MinPasswordLength:
		verr.Add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength), nil)
	case len(password) > MaxPasswordBytes:
		verr.Add("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes), nil)
	case !IsStrongPassword(password):
		verr.Add("password", "password must contain a lowercase letter, an uppercase letter and a digit", nil)
	}

	return verr.OrNil()
}
