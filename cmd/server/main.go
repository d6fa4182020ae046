// Command server runs the kinregistry HTTP API.
//
// Wiring only lives here: config, logger, store selection, and the server
// lifecycle. Domain logic lives under internal/registry.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	authhandler "kinregistry/internal/auth/handler"
	"kinregistry/internal/auth/revocation"
	"kinregistry/internal/auth/token"
	"kinregistry/internal/platform/config"
	"kinregistry/internal/platform/httpserver"
	"kinregistry/internal/platform/logger"
	"kinregistry/internal/platform/metrics"
	platformredis "kinregistry/internal/platform/redis"
	"kinregistry/internal/registry"
	registryhandler "kinregistry/internal/registry/handler"
	memorystore "kinregistry/internal/registry/store/memory"
	postgresstore "kinregistry/internal/registry/store/postgres"
	httptransport "kinregistry/internal/transport/http"
	"kinregistry/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kinregistry: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initialAdmin, err := domain.ParseIdentity(cfg.InitialAdmin)
	if err != nil {
		return fmt.Errorf("invalid initial admin: %w", err)
	}

	// Store selection: Postgres when a URL is configured, in-memory otherwise.
	var store registry.Store
	var checkers []httptransport.Checker
	if cfg.DB.URL != "" {
		db, err := sql.Open("postgres", cfg.DB.URL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		pg := postgresstore.New(db)
		if err := pg.EnsureSchema(ctx, initialAdmin); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		store = pg
		checkers = append(checkers, httptransport.Checker{Name: "postgres", Check: db.PingContext})
		log.Info("using postgres store")
	} else {
		store = memorystore.New(initialAdmin)
		log.Info("using in-memory store")
	}

	// Revocation list: Redis when configured, in-memory otherwise.
	var revocationStore revocation.Store = revocation.NewMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		revocationStore = revocation.NewRedis(redisClient.Client)
		checkers = append(checkers, httptransport.Checker{Name: "redis", Check: redisClient.Health})
		log.Info("using redis revocation list")
	}

	m := metrics.New()
	svc := registry.New(store, registry.WithLogger(log), registry.WithMetrics(m))

	tokens := token.NewService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:     log,
		Auth:       authhandler.New(tokens, revocationStore, cfg.Auth.APIKeyHash, cfg.JWT.TokenTTL, log),
		Registry:   registryhandler.New(svc, log),
		Validator:  token.NewMiddlewareAdapter(tokens),
		Revocation: revocationStore,
		Health:     httptransport.HealthRoutes(checkers...),
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting kinregistry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return httpserver.Shutdown(srv)
	})

	return g.Wait()
}
