// Copyright 2026 The Pressdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pressdesk/pressdesk/internal/audit"
	"github.com/pressdesk/pressdesk/internal/authz"
	"github.com/pressdesk/pressdesk/internal/config"
	"github.com/pressdesk/pressdesk/internal/identity"
	"github.com/pressdesk/pressdesk/internal/observability/logger"
	"github.com/pressdesk/pressdesk/internal/observability/metrics"
	"github.com/pressdesk/pressdesk/internal/observability/tracing"
	"github.com/pressdesk/pressdesk/internal/provider"
	"github.com/pressdesk/pressdesk/internal/provider/local"
	"github.com/pressdesk/pressdesk/internal/ratelimit"
	"github.com/pressdesk/pressdesk/internal/session"
	"github.com/pressdesk/pressdesk/internal/store"
	"github.com/pressdesk/pressdesk/internal/store/localdisk"
	"github.com/pressdesk/pressdesk/internal/store/postgres"
	"github.com/pressdesk/pressdesk/internal/store/redisstore"
	transportHTTP "github.com/pressdesk/pressdesk/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting pressdesk admin gate")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(context.Background())

	// Initialize meter and gate instruments
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	var gateMetrics *metrics.GateMetrics
	if meter != nil {
		gateMetrics, err = metrics.NewGateMetrics(meter)
		if err != nil {
			slog.Error("failed to create gate metrics", logger.Error(err))
		}
	}

	// Validate the permission matrix before serving anything.
	matrix := authz.DefaultMatrix()
	if err := matrix.Validate(); err != nil {
		slog.Error("permission matrix is invalid", logger.Error(err))
		os.Exit(1)
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	auditLogger := audit.NewSlogLogger()

	// Profile store with read-through cache
	profileRepo := postgres.NewProfileRepository(db)
	profiles := identity.NewCachedProfileStore(
		profileRepo,
		cfg.Gate.ProfileCacheSize,
		cfg.Gate.ProfileCacheTTL,
	)

	// Seed the super-admin profile if configured
	bootstrapService := identity.NewBootstrapService(profiles, auditLogger)
	if err := bootstrapService.Bootstrap(ctx, cfg.Gate.SuperAdminEmail); err != nil {
		slog.Error("bootstrap failed", logger.Error(err))
	}

	// State store for limiter and cached identity
	states, err := newStateStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize state store", logger.Error(err))
		os.Exit(1)
	}

	// Identity provider
	idp, err := newProvider(cfg)
	if err != nil {
		slog.Error("failed to initialize identity provider", logger.Error(err))
		os.Exit(1)
	}

	// Login attempt limiter and session reconciler
	limiter := ratelimit.New(ratelimit.Config{
		MaxAttempts: cfg.Limiter.MaxAttempts,
		Window:      cfg.Limiter.Window,
		Lockout:     cfg.Limiter.Lockout,
	}, states, store.KeyLoginAttempts)

	reconciler := session.New(
		session.Config{SuperAdminEmail: cfg.Gate.SuperAdminEmail},
		idp,
		profiles,
		limiter,
		states,
		auditLogger,
	)
	if err := reconciler.Start(ctx); err != nil {
		slog.Error("failed to start session reconciler", logger.Error(err))
		os.Exit(1)
	}
	defer reconciler.Close()

	resolver := authz.NewResolver(reconciler, matrix, authz.DefaultPathMap())

	// HTTP surface
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	handler := transportHTTP.NewHandler(reconciler, resolver, auditLogger, gateMetrics)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", logger.Error(err))
		os.Exit(1)
	}

	slog.Info("server stopped")
}

func newStateStore(ctx context.Context, cfg *config.Config) (store.StateStore, error) {
	switch cfg.State.Backend {
	case "file":
		return localdisk.New(cfg.State.FilePath), nil
	case "redis":
		return redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.State.RedisAddr,
			Password: cfg.State.RedisPassword,
			DB:       cfg.State.RedisDB,
			TTL:      cfg.State.RedisTTL,
		})
	default:
		return store.NewMemoryStore(), nil
	}
}

func newProvider(cfg *config.Config) (provider.IdentityProvider, error) {
	switch cfg.Provider.Mode {
	case "local":
		// Development mode. Accounts come from the environment so test
		// credentials never land in the repository.
		p := local.New(local.DefaultHasher())
		if pw := os.Getenv("GATE_LOCAL_PASSWORD"); pw != "" && cfg.Gate.SuperAdminEmail != "" {
			if err := p.AddAccount(cfg.Gate.SuperAdminEmail, pw); err != nil {
				return nil, err
			}
		}
		return p, nil
	default:
		return provider.NewRESTClient(provider.RESTConfig{
			BaseURL: cfg.Provider.BaseURL,
			APIKey:  cfg.Provider.APIKey,
			Timeout: cfg.Provider.Timeout,
		}), nil
	}
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying admin profile schema...")
	if err := db.Migrate(ctx, postgres.ProfileSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
