package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "library/backend/internal/domain/book"
	userdomain "library/backend/internal/domain/user"

	"github.com/google/uuid"
)

// Service encapsulates catalog use cases: author-only publishing and public
// search.
type Service struct {
	books   domain.Repository
	nowFunc func() time.Time
}

// NewService constructs a catalog service.
func NewService(books domain.Repository) *Service {
	return &Service{
		books:   books,
		nowFunc: time.Now,
	}
}

// PublishInput contains the payload required to publish a book.
type PublishInput struct {
	Title string `json:"title"`
	Genre string `json:"genre"`
	Stock int    `json:"stock"`
}

// Publish creates a book on behalf of the caller. Only authors may publish.
// The book carries the author's display name as a snapshot taken now, not a
// live reference.
func (s *Service) Publish(ctx context.Context, caller *userdomain.User, input PublishInput) (*domain.Book, error) {
	if caller.Role != userdomain.RoleAuthor {
		return nil, userdomain.ErrRoleMismatch
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, errors.New("title is required")
	}
	if input.Stock < 0 {
		return nil, errors.New("stock must not be negative")
	}

	book := &domain.Book{
		ID:        uuid.NewString(),
		Title:     input.Title,
		Author:    caller.Name,
		Genre:     strings.TrimSpace(input.Genre),
		Stock:     input.Stock,
		CreatedAt: s.nowFunc().UTC(),
	}

	if err := s.books.Publish(ctx, book, caller.ID); err != nil {
		return nil, err
	}
	return book, nil
}

// Search lists books matching the filter. Empty filter fields are ignored;
// provided fields must match exactly.
func (s *Service) Search(ctx context.Context, filter domain.Filter) ([]*domain.Book, error) {
	return s.books.Search(ctx, filter)
}
