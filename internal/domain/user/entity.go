package user

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists signals a duplicate email registration.
	ErrEmailExists = errors.New("email already registered")
	// ErrNotFound indicates a missing user.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidRole indicates the provided role is not supported.
	ErrInvalidRole = errors.New("invalid role")
	// ErrRoleMismatch indicates the user's role does not permit the action.
	ErrRoleMismatch = errors.New("action not permitted for role")
)

// Role identifies what a user is allowed to do in the library.
type Role string

const (
	// RoleReader may borrow and return books, capped at five concurrent loans.
	RoleReader Role = "reader"
	// RoleAuthor may publish new books.
	RoleAuthor Role = "author"
)

// ParseRole validates and normalizes a raw role value.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleReader, RoleAuthor:
		return Role(raw), nil
	default:
		return "", ErrInvalidRole
	}
}

// BorrowLimit is the maximum number of books a reader may hold at once.
const BorrowLimit = 5

// User models a library account persisted in storage. BorrowedBooks holds the
// ids of currently held books (readers); BooksWritten holds the ids of
// published books (authors). Role is fixed at signup.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	PasswordHash  string    `json:"-"`
	BorrowedBooks []string  `json:"borrowedBooks"`
	BooksWritten  []string  `json:"booksWritten"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Credentials captures raw credential input for login.
type Credentials struct {
	Email    string
	Password string
}
