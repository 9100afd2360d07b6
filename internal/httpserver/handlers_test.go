package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"library/backend/internal/config"
	bookdomain "library/backend/internal/domain/book"
	lendingdomain "library/backend/internal/domain/lending"
	userdomain "library/backend/internal/domain/user"
	"library/backend/internal/infrastructure/token"
	authusecase "library/backend/internal/usecase/auth"
	catalogusecase "library/backend/internal/usecase/catalog"
	lendingusecase "library/backend/internal/usecase/lending"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore backs all three repository interfaces for handler tests; the
// lending operations re-check their preconditions and mutate both records
// under one lock, matching the transactional store.
type memStore struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
	books map[string]*bookdomain.Book
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*userdomain.User),
		books: make(map[string]*bookdomain.Book),
	}
}

func (s *memStore) Create(_ context.Context, u *userdomain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return userdomain.ErrEmailExists
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, userdomain.ErrNotFound
}

func (s *memStore) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, userdomain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) Publish(_ context.Context, b *bookdomain.Book, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	author, ok := s.users[authorID]
	if !ok {
		return userdomain.ErrNotFound
	}
	cp := *b
	s.books[b.ID] = &cp
	author.BooksWritten = append(author.BooksWritten, b.ID)
	return nil
}

func (s *memStore) GetBookByID(_ context.Context, id string) (*bookdomain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, bookdomain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memStore) Search(_ context.Context, filter bookdomain.Filter) ([]*bookdomain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*bookdomain.Book
	for _, b := range s.books {
		if filter.Title != "" && b.Title != filter.Title {
			continue
		}
		if filter.Author != "" && b.Author != filter.Author {
			continue
		}
		if filter.Genre != "" && b.Genre != filter.Genre {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) Borrow(_ context.Context, readerID, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reader, ok := s.users[readerID]
	if !ok {
		return userdomain.ErrNotFound
	}
	if len(reader.BorrowedBooks) >= userdomain.BorrowLimit {
		return lendingdomain.ErrBorrowLimitReached
	}
	b, ok := s.books[bookID]
	if !ok || b.Stock <= 0 {
		return bookdomain.ErrUnavailable
	}
	b.Stock--
	reader.BorrowedBooks = append(reader.BorrowedBooks, bookID)
	return nil
}

func (s *memStore) Return(_ context.Context, readerID, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reader, ok := s.users[readerID]
	if !ok {
		return userdomain.ErrNotFound
	}
	idx := -1
	for i, id := range reader.BorrowedBooks {
		if id == bookID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return lendingdomain.ErrNotBorrowed
	}
	b, ok := s.books[bookID]
	if !ok {
		return bookdomain.ErrNotFound
	}
	reader.BorrowedBooks = append(reader.BorrowedBooks[:idx], reader.BorrowedBooks[idx+1:]...)
	b.Stock++
	return nil
}

// bookRepoAdapter renames GetBookByID to satisfy book.Repository without
// clashing with the user GetByID on memStore.
type bookRepoAdapter struct{ *memStore }

func (a bookRepoAdapter) GetByID(ctx context.Context, id string) (*bookdomain.Book, error) {
	return a.GetBookByID(ctx, id)
}

type testEnv struct {
	server *Server
	store  *memStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	tokens := token.NewJWTManager("handler-test-secret", 15*24*time.Hour, "library")
	cfg := config.Config{
		HTTPPort:        "0",
		AllowedOrigins:  []string{"*"},
		ReadTimeoutSec:  5,
		WriteTimeoutSec: 5,
		IdleTimeoutSec:  5,
	}
	server := NewServer(cfg,
		authusecase.NewService(store, tokens),
		catalogusecase.NewService(bookRepoAdapter{store}),
		lendingusecase.NewService(store),
	)
	return &testEnv{server: server, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, authToken string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authToken != "" {
		req.Header.Set("Authorization", authToken)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, name, email, role string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/users/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret", "role": role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/users/login", "", map[string]string{
		"email": email, "password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Token)
	return payload.Token
}

func (e *testEnv) publish(t *testing.T, authToken, title, genre string, stock int) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/books/create", authToken, map[string]any{
		"title": title, "genre": genre, "stock": stock,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book bookdomain.Book
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	return book.ID
}

func TestSignup_DuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada", "a@x.com", "reader")

	rec := env.do(t, http.MethodPost, "/users/signup", "", map[string]string{
		"name": "Other", "email": "a@x.com", "password": "secret", "role": "reader",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, env.store.users, 1)
}

func TestSignup_RejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users/signup", "", map[string]string{
		"name": "Ada", "email": "a@x.com", "password": "secret", "role": "admin",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup_DoesNotEchoPasswordHash(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users/signup", "", map[string]string{
		"name": "Ada", "email": "a@x.com", "password": "secret", "role": "reader",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "hash")
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada", "a@x.com", "reader")

	rec := env.do(t, http.MethodPost, "/users/login", "", map[string]string{
		"email": "a@x.com", "password": "wrong",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"token"`)
}

func TestLogin_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users/login", "", map[string]string{
		"email": "ghost@x.com", "password": "secret",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_MissingTokenIs401_InvalidTokenIs400(t *testing.T) {
	env := newTestEnv(t)

	missing := env.do(t, http.MethodPost, "/books/create", "", map[string]any{"title": "T", "stock": 1})
	assert.Equal(t, http.StatusUnauthorized, missing.Code)

	invalid := env.do(t, http.MethodPost, "/books/create", "not-a-token", map[string]any{"title": "T", "stock": 1})
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestAuth_DeletedUserBehindValidTokenIs500(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada", "a@x.com", "reader")
	tok := env.login(t, "a@x.com")

	env.store.mu.Lock()
	for id := range env.store.users {
		delete(env.store.users, id)
	}
	env.store.mu.Unlock()

	rec := env.do(t, http.MethodPost, "/reader/books/borrow", tok, map[string]string{"bookId": "b1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPublish_ReaderForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ada", "reader@x.com", "reader")
	tok := env.login(t, "reader@x.com")

	rec := env.do(t, http.MethodPost, "/books/create", tok, map[string]any{
		"title": "Diary", "genre": "memoir", "stock": 2,
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.store.books, "no book may be created")
}

func TestPublish_AuthorSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	tok := env.login(t, "author@x.com")

	bookID := env.publish(t, tok, "1984", "dystopia", 3)

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	b := env.store.books[bookID]
	require.NotNil(t, b)
	assert.Equal(t, "George Orwell", b.Author)
	assert.Equal(t, 3, b.Stock)
	for _, u := range env.store.users {
		assert.Contains(t, u.BooksWritten, bookID)
	}
}

func TestSearch_PublicWithFilters(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	tok := env.login(t, "author@x.com")
	env.publish(t, tok, "1984", "dystopia", 3)
	env.publish(t, tok, "Animal Farm", "satire", 2)

	all := env.do(t, http.MethodGet, "/books", "", nil)
	require.Equal(t, http.StatusOK, all.Code)
	var allPayload struct {
		Books []bookdomain.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(all.Body.Bytes(), &allPayload))
	assert.Len(t, allPayload.Books, 2)

	filtered := env.do(t, http.MethodGet, "/books?genre=satire", "", nil)
	require.Equal(t, http.StatusOK, filtered.Code)
	var filteredPayload struct {
		Books []bookdomain.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(filtered.Body.Bytes(), &filteredPayload))
	require.Len(t, filteredPayload.Books, 1)
	assert.Equal(t, "Animal Farm", filteredPayload.Books[0].Title)
}

func TestBorrow_AuthorForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	tok := env.login(t, "author@x.com")
	bookID := env.publish(t, tok, "1984", "dystopia", 3)

	rec := env.do(t, http.MethodPost, "/reader/books/borrow", tok, map[string]string{"bookId": bookID})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	assert.Equal(t, 3, env.store.books[bookID].Stock, "stock must be untouched")
}

func TestBorrowReturn_FullCycle(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	authorTok := env.login(t, "author@x.com")
	bookID := env.publish(t, authorTok, "1984", "dystopia", 2)

	env.signup(t, "Ada", "reader@x.com", "reader")
	readerTok := env.login(t, "reader@x.com")

	borrow := env.do(t, http.MethodPost, "/reader/books/borrow", readerTok, map[string]string{"bookId": bookID})
	require.Equal(t, http.StatusOK, borrow.Code, borrow.Body.String())
	env.store.mu.Lock()
	assert.Equal(t, 1, env.store.books[bookID].Stock)
	env.store.mu.Unlock()

	ret := env.do(t, http.MethodPost, "/reader/books/return", readerTok, map[string]string{"bookId": bookID})
	require.Equal(t, http.StatusOK, ret.Code, ret.Body.String())

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	assert.Equal(t, 2, env.store.books[bookID].Stock, "round trip restores stock")
	for _, u := range env.store.users {
		assert.Empty(t, u.BorrowedBooks)
	}
}

func TestBorrow_ExhaustedStock(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	authorTok := env.login(t, "author@x.com")
	bookID := env.publish(t, authorTok, "1984", "dystopia", 1)

	env.signup(t, "Ada", "r1@x.com", "reader")
	env.signup(t, "Bob", "r2@x.com", "reader")
	tok1 := env.login(t, "r1@x.com")
	tok2 := env.login(t, "r2@x.com")

	first := env.do(t, http.MethodPost, "/reader/books/borrow", tok1, map[string]string{"bookId": bookID})
	require.Equal(t, http.StatusOK, first.Code)

	second := env.do(t, http.MethodPost, "/reader/books/borrow", tok2, map[string]string{"bookId": bookID})
	assert.Equal(t, http.StatusNotFound, second.Code)

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	assert.Equal(t, 0, env.store.books[bookID].Stock)
}

func TestBorrow_LimitReached(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	authorTok := env.login(t, "author@x.com")

	env.signup(t, "Ada", "reader@x.com", "reader")
	readerTok := env.login(t, "reader@x.com")

	var lastBook string
	for i := 0; i < userdomain.BorrowLimit+1; i++ {
		lastBook = env.publish(t, authorTok, fmt.Sprintf("Book %d", i), "genre", 1)
		if i < userdomain.BorrowLimit {
			rec := env.do(t, http.MethodPost, "/reader/books/borrow", readerTok, map[string]string{"bookId": lastBook})
			require.Equal(t, http.StatusOK, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/reader/books/borrow", readerTok, map[string]string{"bookId": lastBook})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	assert.Equal(t, 1, env.store.books[lastBook].Stock, "stock unchanged when the limit blocks the borrow")
}

func TestReturn_NotBorrowed(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	authorTok := env.login(t, "author@x.com")
	bookID := env.publish(t, authorTok, "1984", "dystopia", 1)

	env.signup(t, "Ada", "reader@x.com", "reader")
	readerTok := env.login(t, "reader@x.com")

	rec := env.do(t, http.MethodPost, "/reader/books/return", readerTok, map[string]string{"bookId": bookID})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	assert.Equal(t, 1, env.store.books[bookID].Stock)
}

func TestBearerPrefixAccepted(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "George Orwell", "author@x.com", "author")
	tok := env.login(t, "author@x.com")

	rec := env.do(t, http.MethodPost, "/books/create", "Bearer "+tok, map[string]any{
		"title": "1984", "genre": "dystopia", "stock": 1,
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
}
