package lending

import (
	"context"
	"errors"
	"strings"

	"library/backend/internal/domain/lending"
	userdomain "library/backend/internal/domain/user"
)

// Service runs the borrow and return workflows. Role checks happen here;
// stock and limit preconditions are enforced atomically by the ledger so
// concurrent requests cannot oversubscribe a book or a reader.
type Service struct {
	ledger lending.Ledger
}

// NewService constructs a lending service.
func NewService(ledger lending.Ledger) *Service {
	return &Service{ledger: ledger}
}

// Borrow checks out one copy of the book for the caller. Only readers may
// borrow, a reader holds at most five books at once, and the book must have
// stock available.
func (s *Service) Borrow(ctx context.Context, caller *userdomain.User, bookID string) error {
	if caller.Role != userdomain.RoleReader {
		return userdomain.ErrRoleMismatch
	}
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return errors.New("bookId is required")
	}
	return s.ledger.Borrow(ctx, caller.ID, bookID)
}

// Return hands back one held copy of the book. Any authenticated user may
// return; the book must be in the caller's borrowed list.
func (s *Service) Return(ctx context.Context, caller *userdomain.User, bookID string) error {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return errors.New("bookId is required")
	}
	return s.ledger.Return(ctx, caller.ID, bookID)
}
