package postgres

import (
	"context"
	"errors"

	domain "library/backend/internal/domain/book"
	userdomain "library/backend/internal/domain/user"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var dialect = goqu.Dialect("postgres")

// BookRepository persists catalog records in PostgreSQL.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository constructs a repository.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// Publish inserts the book and appends its id to the author's written list
// inside a single transaction, so the catalog never holds a book whose
// author record does not reference it.
func (r *BookRepository) Publish(ctx context.Context, book *domain.Book, authorID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertBook = `
INSERT INTO books (id, title, author, genre, stock, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := tx.Exec(ctx, insertBook,
		book.ID,
		book.Title,
		book.Author,
		book.Genre,
		book.Stock,
		book.CreatedAt,
	); err != nil {
		return err
	}

	const linkAuthor = `
UPDATE users SET books_written = array_append(books_written, $2), updated_at = now()
WHERE id = $1
`
	ct, err := tx.Exec(ctx, linkAuthor, authorID, book.ID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return userdomain.ErrNotFound
	}

	return tx.Commit(ctx)
}

// GetByID fetches a book by id.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	const query = `
SELECT id, title, author, genre, stock, created_at
FROM books WHERE id = $1
`
	row := r.pool.QueryRow(ctx, query, id)
	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

// Search returns books matching the provided filters with exact equality;
// empty filter fields are ignored.
func (r *BookRepository) Search(ctx context.Context, filter domain.Filter) ([]*domain.Book, error) {
	ds := dialect.
		From("books").
		Select("id", "title", "author", "genre", "stock", "created_at").
		Order(goqu.C("title").Asc())

	if filter.Title != "" {
		ds = ds.Where(goqu.C("title").Eq(filter.Title))
	}
	if filter.Author != "" {
		ds = ds.Where(goqu.C("author").Eq(filter.Author))
	}
	if filter.Genre != "" {
		ds = ds.Where(goqu.C("genre").Eq(filter.Genre))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func scanBook(row pgx.Row) (*domain.Book, error) {
	var b domain.Book
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Genre,
		&b.Stock,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
