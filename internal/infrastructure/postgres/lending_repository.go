package postgres

import (
	"context"
	"errors"

	bookdomain "library/backend/internal/domain/book"
	"library/backend/internal/domain/lending"
	userdomain "library/backend/internal/domain/user"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conflicting transactions are retried before the failure surfaces, since a
// conflict usually means the precondition must be re-checked anyway.
const maxConflictRetries = 3

// LendingRepository applies borrow and return workflows as single
// transactions with conditional updates, so concurrent requests against the
// same book or the same reader cannot lose updates: the stock decrement only
// applies while stock > 0 and the borrowed-list append only applies while the
// reader holds fewer than five books.
type LendingRepository struct {
	pool *pgxpool.Pool
}

// NewLendingRepository constructs a repository.
func NewLendingRepository(pool *pgxpool.Pool) *LendingRepository {
	return &LendingRepository{pool: pool}
}

var _ lending.Ledger = (*LendingRepository)(nil)

// Borrow appends the book to the reader's borrowed list and decrements the
// book's stock; both commit together or not at all.
func (r *LendingRepository) Borrow(ctx context.Context, readerID, bookID string) error {
	return r.withRetry(ctx, func(tx pgx.Tx) error {
		const appendHeld = `
UPDATE users SET borrowed_books = array_append(borrowed_books, $2), updated_at = now()
WHERE id = $1 AND cardinality(borrowed_books) < 5
`
		ct, err := tx.Exec(ctx, appendHeld, readerID, bookID)
		if err != nil {
			if isCheckViolation(err) {
				return lending.ErrBorrowLimitReached
			}
			return err
		}
		if ct.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, readerID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return userdomain.ErrNotFound
			}
			return lending.ErrBorrowLimitReached
		}

		const takeCopy = `
UPDATE books SET stock = stock - 1
WHERE id = $1 AND stock > 0
`
		ct, err = tx.Exec(ctx, takeCopy, bookID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return bookdomain.ErrUnavailable
		}
		return nil
	})
}

// Return removes one held occurrence of the book from the reader's borrowed
// list and increments the book's stock; both commit together or not at all.
func (r *LendingRepository) Return(ctx context.Context, readerID, bookID string) error {
	return r.withRetry(ctx, func(tx pgx.Tx) error {
		var held []string
		err := tx.QueryRow(ctx, `SELECT borrowed_books FROM users WHERE id = $1 FOR UPDATE`, readerID).Scan(&held)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return userdomain.ErrNotFound
			}
			return err
		}

		idx := -1
		for i, id := range held {
			if id == bookID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return lending.ErrNotBorrowed
		}
		held = append(held[:idx], held[idx+1:]...)

		const updateHeld = `
UPDATE users SET borrowed_books = $2, updated_at = now()
WHERE id = $1
`
		if _, err := tx.Exec(ctx, updateHeld, readerID, held); err != nil {
			return err
		}

		const restockCopy = `
UPDATE books SET stock = stock + 1
WHERE id = $1
`
		ct, err := tx.Exec(ctx, restockCopy, bookID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return bookdomain.ErrNotFound
		}
		return nil
	})
}

func (r *LendingRepository) withRetry(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.inTx(ctx, fn)
		if err == nil || !isRetryableConflict(err) {
			return err
		}
	}
	return err
}

func (r *LendingRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
