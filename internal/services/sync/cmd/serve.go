package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/gamma-omg/partyparty/internal/pkg/middleware"
	"github.com/gamma-omg/partyparty/internal/pkg/router"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/cache"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/config"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/journal"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/rest"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/service"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), config.FromEnv())
		},
	}
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case config.LogDebug:
		level = slog.LevelDebug
	case config.LogWarn:
		level = slog.LevelWarn
	case config.LogError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// readinessCheck reports whether a backing service can take requests.
type readinessCheck func(ctx context.Context) error

func run(ctx context.Context, cfg config.Config) error {
	slog.SetDefault(newLogger(os.Stderr, cfg))
	slog.Info("starting sync service",
		"store", cfg.Store.Backend,
		"cache", cfg.Cache.Backend,
		"journal", cfg.Journal.Backend,
		"auth", cfg.Auth.Mode,
	)

	var checks []readinessCheck

	stores, err := newStores(cfg)
	if err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}

	binderOpts := []service.BinderOption{service.WithSessions(stores)}
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		c := cache.NewRistretto(cache.RistrettoConfig{MaxKeys: cfg.Cache.MaxKeys, TTL: cfg.Cache.TTL})
		defer closeQuietly("binding cache", c)
		binderOpts = append(binderOpts, service.WithBindingCache(c))
	case config.CacheRedis:
		c := cache.NewRedis(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.TTL,
		})
		defer closeQuietly("binding cache", c)
		checks = append(checks, c.Ping)
		binderOpts = append(binderOpts, service.WithBindingCache(c))
	}

	j, db, err := newJournal(cfg)
	if err != nil {
		return fmt.Errorf("failed to open rsvp journal: %w", err)
	}
	if db != nil {
		defer db.Close()
		checks = append(checks, db.PingContext)
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	binder := service.NewBinder(binderOpts...)
	reconciler := service.NewReconciler(stores, service.ReconcilerConfig{MaxInFlight: cfg.Reconcile.MaxInFlight})

	api := rest.NewAPI(
		rest.WithBinder(binder),
		rest.WithReconciler(reconciler),
		rest.WithParties(service.NewPartyService(stores, reconciler, service.PartyConfig{})),
		rest.WithRSVP(service.NewRSVPService(stores, j, service.RSVPConfig{})),
		rest.WithGuests(service.NewGuestService(stores)),
	)

	rt := router.New()
	rt.Use(middleware.Recover(), middleware.RequestID(), middleware.Log())
	rt.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rt.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				slog.Warn("readiness check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	v1 := rt.SubRouter("/api/v1")
	v1.Use(middleware.Auth(verifier))
	v1.Handle("/", api)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Handler:      rt,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpSrv.Addr, "api", v1.Prefix())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newStores(cfg config.Config) (store.Sessions, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		slog.Warn("using in-memory record store, data is lost on restart")
		return store.NewMemory(), nil
	default:
		return store.NewRemote(store.RemoteConfig{
			Endpoint:  cfg.Store.Endpoint.String(),
			Timeout:   cfg.Store.Timeout,
			RateLimit: cfg.Store.RateLimit,
			RateBurst: cfg.Store.RateBurst,
		})
	}
}

// newJournal returns the configured journal and, for postgres, the database behind it.
func newJournal(cfg config.Config) (service.RSVPJournal, *sql.DB, error) {
	if cfg.Journal.Backend != config.JournalPostgres {
		return journal.NewMemory(), nil, nil
	}

	db, err := journal.NewPostgresDB(postgresConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return journal.NewPostgres(db), db, nil
}

func newVerifier(ctx context.Context, cfg config.Config) (middleware.TokenVerifier, error) {
	if cfg.Auth.Mode == config.AuthOIDC {
		return middleware.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCAudience)
	}

	var opts []middleware.HMACOption
	if cfg.Auth.Issuer != "" {
		opts = append(opts, middleware.WithIssuer(cfg.Auth.Issuer))
	}
	return middleware.NewHMACVerifier([]byte(cfg.Auth.Secret), opts...), nil
}

func postgresConfig(cfg config.Config) journal.PostgresConfig {
	return journal.PostgresConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DB:       cfg.DB.Name,
	}
}

func closeQuietly(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close "+name, "error", err)
	}
}
