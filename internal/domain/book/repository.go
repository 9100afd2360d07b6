package book

import "context"

// Repository defines persistence behaviours for the catalog.
type Repository interface {
	// Publish inserts the book and links its id to the publishing author's
	// written list; both writes commit together or not at all.
	Publish(ctx context.Context, book *Book, authorID string) error
	GetByID(ctx context.Context, id string) (*Book, error)
	Search(ctx context.Context, filter Filter) ([]*Book, error)
}
