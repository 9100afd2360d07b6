package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "library/backend/internal/domain/user"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrTokenInvalid means a supplied session token cannot be validated.
var ErrTokenInvalid = errors.New("token invalid or expired")

// ErrInconsistentState means a validated token references a user record that
// no longer exists. This is a server-side integrity fault, not a client error.
var ErrInconsistentState = errors.New("authenticated user record missing")

// Service coordinates signup, login, and session verification.
type Service struct {
	users   domain.Repository
	tokens  TokenManager
	nowFunc func() time.Time
}

// NewService constructs an auth service.
func NewService(users domain.Repository, tokens TokenManager) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		nowFunc: time.Now,
	}
}

// Register creates a new user with the requested role and returns the
// persisted entity. The role is fixed at signup and never changes.
func (s *Service) Register(ctx context.Context, name, email, password, role string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	password = strings.TrimSpace(password)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}

	parsedRole, err := domain.ParseRole(strings.TrimSpace(strings.ToLower(role)))
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	user := &domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          strings.TrimSpace(name),
		Role:          parsedRole,
		PasswordHash:  string(hashed),
		BorrowedBooks: []string{},
		BooksWritten:  []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login validates credentials and returns a session token plus the user.
// An unknown email surfaces as domain.ErrNotFound; a wrong password as
// domain.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) (string, *domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	password := strings.TrimSpace(creds.Password)
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// VerifyToken validates a bearer token and returns the associated user.
func (s *Service) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	userID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInconsistentState
		}
		return nil, err
	}

	return user, nil
}
