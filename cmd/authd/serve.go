package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/authkit-go/authkit"
	"github.com/authkit-go/authkit/httpapi"
	"github.com/authkit-go/authkit/internal/metrics"
	"github.com/authkit-go/authkit/middleware"
	"github.com/authkit-go/authkit/store/pgstore"
	"github.com/authkit-go/authkit/store/redistore"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var listenAddr string
	var logFormat string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the credential HTTP server",
		Long: `Run migrations, connect to PostgreSQL (and Redis when configured),
and serve the credential endpoints until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen-addr") {
				cfg.ListenAddr = listenAddr
			}
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cmd.Context(), cfg, logFormat)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen-addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "log format (json or text)")

	return cmd
}

func newLogger(format string) *slog.Logger {
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func runServe(ctx context.Context, cfg serverConfig, logFormat string) error {
	log := newLogger(logFormat)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pgstore.Migrate(ctx, cfg.DatabaseDSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pool, err := connectPool(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	var tokens authkit.TokenStore = pgstore.NewTokenStore(pool)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		tokens = redistore.New(rdb, cfg.RedisPrefix)
		log.Info("refresh tokens on redis", "addr", cfg.RedisAddr)
	}

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := authkit.New().
		WithConfig(engineCfg).
		WithUserStore(pgstore.NewUserStore(pool)).
		WithTokenStore(tokens).
		WithLogger(log).
		WithMetrics(metrics.New(registry)).
		Build()
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	api := httpapi.New(svc, log, engineCfg.Token.AccessTTL, engineCfg.Refresh.TTL)
	guard := middleware.Require(svc.Signer())

	mux := http.NewServeMux()
	mux.Handle("/auth/", api.Routes())
	mux.Handle("GET /me", guard(http.HandlerFunc(handleMe)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// connectPool dials PostgreSQL with fibonacci backoff so a server starting
// alongside its database does not flap.
func connectPool(ctx context.Context, dsn string, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			log.Warn("database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// handleMe reports the verified caller identity.
func handleMe(w http.ResponseWriter, r *http.Request) {
	claims := authkit.ClaimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := claims.UserID()
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":       id,
		"username": claims.Username,
		"role":     claims.Role,
	})
}
