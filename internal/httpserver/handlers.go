package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	bookdomain "library/backend/internal/domain/book"
	lendingdomain "library/backend/internal/domain/lending"
	userdomain "library/backend/internal/domain/user"
	authusecase "library/backend/internal/usecase/auth"
	catalogusecase "library/backend/internal/usecase/catalog"
)

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.router.Handle("/users/signup", http.HandlerFunc(s.handleSignup))
	s.router.Handle("/users/login", http.HandlerFunc(s.handleLogin))
	s.router.Handle("/books", http.HandlerFunc(s.handleSearchBooks))

	authenticated := s.authMiddleware
	s.router.Handle("/books/create", authenticated(http.HandlerFunc(s.handlePublishBook)))
	s.router.Handle("/reader/books/borrow", authenticated(http.HandlerFunc(s.handleBorrowBook)))
	s.router.Handle("/reader/books/return", authenticated(http.HandlerFunc(s.handleReturnBook)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	user, err := s.authService.Register(r.Context(), payload.Name, payload.Email, payload.Password, payload.Role)
	if err != nil {
		switch {
		case errors.Is(err, userdomain.ErrEmailExists):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, userdomain.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	token, user, err := s.authService.Login(r.Context(), userdomain.Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, userdomain.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, userdomain.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (s *Server) handlePublishBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	caller, ok := currentUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload catalogusecase.PublishInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	book, err := s.catalogService.Publish(r.Context(), caller, payload)
	if err != nil {
		switch {
		case errors.Is(err, userdomain.ErrRoleMismatch):
			writeError(w, http.StatusForbidden, "access denied")
		case errors.Is(err, userdomain.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	books, err := s.catalogService.Search(r.Context(), bookdomain.Filter{
		Title:  query.Get("title"),
		Author: query.Get("author"),
		Genre:  query.Get("genre"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if books == nil {
		books = []*bookdomain.Book{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"books": books})
}

func (s *Server) handleBorrowBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	caller, ok := currentUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookID, ok := decodeBookID(w, r)
	if !ok {
		return
	}

	if err := s.lendingService.Borrow(r.Context(), caller, bookID); err != nil {
		switch {
		case errors.Is(err, userdomain.ErrRoleMismatch):
			writeError(w, http.StatusForbidden, "access denied")
		case errors.Is(err, lendingdomain.ErrBorrowLimitReached):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, bookdomain.ErrUnavailable):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, userdomain.ErrNotFound):
			writeError(w, http.StatusInternalServerError, "user record missing")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "book borrowed successfully"})
}

func (s *Server) handleReturnBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	caller, ok := currentUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	bookID, ok := decodeBookID(w, r)
	if !ok {
		return
	}

	if err := s.lendingService.Return(r.Context(), caller, bookID); err != nil {
		switch {
		case errors.Is(err, lendingdomain.ErrNotBorrowed):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, bookdomain.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, userdomain.ErrNotFound):
			writeError(w, http.StatusInternalServerError, "user record missing")
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "book returned successfully"})
}

func decodeBookID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload struct {
		BookID string `json:"bookId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return "", false
	}
	return payload.BookID, true
}

// authMiddleware authenticates the request and stores the caller in the
// request context. A missing credential is rejected with 401; a credential
// that fails verification with 400, mirroring the original API's contract.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "access denied")
			return
		}

		user, err := s.authService.VerifyToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, authusecase.ErrInconsistentState) {
				writeError(w, http.StatusInternalServerError, "user record missing")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUserFromContext(ctx context.Context) (*userdomain.User, bool) {
	user, ok := ctx.Value(ctxKeyUser{}).(*userdomain.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

type ctxKeyUser struct{}

// extractToken accepts either a bare token or the Bearer scheme in the
// Authorization header.
func extractToken(header string) string {
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}
