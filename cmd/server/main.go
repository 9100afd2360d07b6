package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"library/backend/internal/config"
	"library/backend/internal/httpserver"
	"library/backend/internal/infrastructure/postgres"
	"library/backend/internal/infrastructure/token"
	authusecase "library/backend/internal/usecase/auth"
	catalogusecase "library/backend/internal/usecase/catalog"
	lendingusecase "library/backend/internal/usecase/lending"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	rootCtx := context.Background()
	db, err := postgres.New(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(rootCtx); err != nil {
		log.Fatalf("failed to run database migrations: %v", err)
	}

	tokenManager := token.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL, cfg.JWTIssuer)

	authService := authusecase.NewService(postgres.NewUserRepository(db.Pool), tokenManager)
	catalogService := catalogusecase.NewService(postgres.NewBookRepository(db.Pool))
	lendingService := lendingusecase.NewService(postgres.NewLendingRepository(db.Pool))

	server := httpserver.NewServer(cfg, authService, catalogService, lendingService)
	log.Printf("HTTP server listening on %s", server.Addr())

	go func() {
		if err := server.Start(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP server closed: %v", err)
				return
			}
			log.Fatalf("server error: %v", err)
		}
		log.Printf("HTTP server stopped accepting new connections")
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	} else {
		log.Printf("graceful shutdown completed")
	}
}
