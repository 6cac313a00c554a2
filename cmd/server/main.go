package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expense-tracker/internal/audit"
	"expense-tracker/internal/auth"
	"expense-tracker/internal/config"
	"expense-tracker/internal/expense"
	"expense-tracker/internal/handlers"
	"expense-tracker/internal/logger"
	"expense-tracker/internal/session"
	"expense-tracker/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Development, logger.LogLevel(cfg.Log.Level))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx := context.Background()

	db, err := storage.Open(ctx, storage.Dialect(cfg.Database.Driver), cfg.DatabaseDSN(), storage.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	log.Info("database ready", zap.String("driver", cfg.Database.Driver))

	hasher, err := cfg.Auth.NewHasher()
	if err != nil {
		return err
	}
	credentials, err := auth.NewCredentials(db, hasher)
	if err != nil {
		return err
	}
	if err := bootstrapAdmin(ctx, db, credentials, cfg.Admin, log); err != nil {
		return err
	}

	store, closeStore, err := newSessionStore(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := session.NewAuthority(store, db, cfg.Session.Duration, log)
	expenses := expense.NewService(db, audit.NewRecorder(log.Named("audit")))
	h := handlers.NewHandlers(credentials, sessions, expenses, log, cfg.Server.SecureCookie)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      setupRouter(h, db, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func setupRouter(h *handlers.Handlers, db pinger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	h.Routes(r, allowedOrigins)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"unavailable"}`)
			return
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	})

	return r
}

func newSessionStore(ctx context.Context, cfg *config.Config, db *storage.DB, log *zap.Logger) (session.Store, func(), error) {
	if cfg.Session.Backend == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		log.Info("session store ready", zap.String("backend", "redis"), zap.String("addr", cfg.Redis.Addr))
		return session.NewRedisStore(rdb, ""), func() { rdb.Close() }, nil
	}

	removed, err := db.CleanExpiredSessions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("clean expired sessions: %w", err)
	}
	log.Info("session store ready", zap.String("backend", "sql"), zap.Int64("expired_removed", removed))
	return db, func() {}, nil
}

// bootstrapAdmin creates the configured admin user when the database has no users yet.
func bootstrapAdmin(ctx context.Context, db *storage.DB, credentials *auth.Credentials, admin config.AdminConfig, log *zap.Logger) error {
	if admin.User == "" {
		return nil
	}
	count, err := db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	id, err := credentials.Register(ctx, admin.User, admin.Password)
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Info("admin user created", zap.String("username", admin.User), zap.Int64("user_id", id))
	return nil
}
