package lending

import (
	"context"
	"errors"
)

var (
	// ErrBorrowLimitReached means the reader already holds the maximum number
	// of books.
	ErrBorrowLimitReached = errors.New("borrowing limit reached")
	// ErrNotBorrowed means the book is not in the reader's borrowed list.
	ErrNotBorrowed = errors.New("book not found in borrowed list")
)

// Ledger applies borrow and return as atomic units: the stock mutation and
// the reader's borrowed-list mutation commit together or not at all, and the
// preconditions (stock > 0, fewer than five held books, book actually held)
// are re-checked at apply time so concurrent calls cannot oversubscribe a
// book or a reader.
type Ledger interface {
	// Borrow decrements the book's stock and appends bookID to the reader's
	// borrowed list. Fails with ErrBorrowLimitReached, book.ErrUnavailable,
	// or user.ErrNotFound.
	Borrow(ctx context.Context, readerID, bookID string) error

	// Return removes one held occurrence of bookID and increments the book's
	// stock. Fails with ErrNotBorrowed, book.ErrNotFound, or user.ErrNotFound.
	Return(ctx context.Context, readerID, bookID string) error
}
