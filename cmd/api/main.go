package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nischald42-create/aquabank/internal/api"
	"github.com/nischald42-create/aquabank/internal/auth"
	"github.com/nischald42-create/aquabank/internal/config"
	"github.com/nischald42-create/aquabank/internal/domain"
	"github.com/nischald42-create/aquabank/internal/ledger"
	"github.com/nischald42-create/aquabank/internal/query"
	"github.com/nischald42-create/aquabank/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	ledgerStore, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	queries := query.NewService(ledgerStore)
	engine := ledger.NewEngine(ledgerStore, queries)
	credentials := auth.NewRegistry()

	bootstrapIdentities(cfg, credentials)
	if cfg.Env == "development" {
		seedDemoData(ctx, ledgerStore, engine, credentials)
	}

	handler := api.NewHandler(engine, queries, ledgerStore, credentials)
	router := api.NewRouter(handler, credentials)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

// openStore picks the backend: Postgres when DB_SOURCE is set, otherwise
// the in-memory store (journaled if JOURNAL_PATH is set).
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.DBSource != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	if cfg.JournalPath != "" {
		mem, err := store.NewJournaledMemoryStore(cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		return mem, func() { mem.Close() }, nil
	}
	slog.Warn("running on the in-memory store without a journal, state will not survive restarts")
	mem := store.NewMemoryStore()
	return mem, func() {}, nil
}

// bootstrapIdentities registers the admin credential. With no configured
// token a random one is generated and logged once so a fresh deployment is
// still reachable.
func bootstrapIdentities(cfg *config.Config, credentials *auth.Registry) {
	token := cfg.AdminToken
	if token == "" {
		token = "ak_" + uuid.NewString()
		slog.Warn("no BOOTSTRAP_ADMIN_TOKEN configured, generated one for this run", "token", token)
	}
	credentials.Register(&auth.Identity{
		UserID: "admin",
		Name:   "Administrator",
		Roles:  []auth.Role{auth.RoleAdmin, auth.RoleUser},
	}, token)
}

// seedDemoData provisions the demo user and their two accounts so the
// dashboard has something to show in development.
func seedDemoData(ctx context.Context, s store.Store, engine *ledger.Engine, credentials *auth.Registry) {
	demo := &auth.Identity{UserID: "demo", Name: "Demo Customer", Roles: []auth.Role{auth.RoleUser}}
	token := "ak_" + uuid.NewString()
	credentials.Register(demo, token)

	seed := []struct {
		id      string
		name    string
		balance string
	}{
		{"CHK-001", "Everyday Checking", "8762.45"},
		{"SAV-001", "Rainy Day Savings", "12034.12"},
	}
	for _, a := range seed {
		acc := &domain.Account{ID: a.id, OwnerID: demo.UserID, Name: a.name, CreatedAt: time.Now().UTC()}
		if err := s.CreateAccount(ctx, acc); err != nil {
			slog.Warn("demo seed skipped", "account", a.id, "error", err)
			continue
		}
		amount, err := domain.ParseAmount(a.balance)
		if err != nil {
			slog.Warn("demo seed skipped", "account", a.id, "error", err)
			continue
		}
		if _, err := engine.Deposit(ctx, acc.ID, amount, "opening balance"); err != nil {
			slog.Warn("demo deposit failed", "account", a.id, "error", err)
		}
	}
	slog.Info("demo user seeded", "user_id", demo.UserID, "token", token)
}
