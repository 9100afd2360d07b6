package book

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a book could not be located.
	ErrNotFound = errors.New("book not found")
	// ErrUnavailable means the book does not exist or has no copies in stock.
	ErrUnavailable = errors.New("book not available")
)

// Book captures a catalog record. Author is the publishing user's display
// name at publish time, not a live reference. Stock is the aggregate count of
// available copies and never goes negative.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows catalog searches. Empty fields are ignored; provided fields
// match exactly.
type Filter struct {
	Title  string
	Author string
	Genre  string
}
