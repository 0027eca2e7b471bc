package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	api "github.com/bigshort-one/bigshort/internal/api/http"
	"github.com/bigshort-one/bigshort/internal/cache"
	"github.com/bigshort-one/bigshort/internal/clicks"
	"github.com/bigshort-one/bigshort/internal/config"
	"github.com/bigshort-one/bigshort/internal/database/postgres"
	"github.com/bigshort-one/bigshort/internal/pool"
	"github.com/bigshort-one/bigshort/internal/service"
	pkgpostgres "github.com/bigshort-one/bigshort/pkg/postgres"
	pkgredis "github.com/bigshort-one/bigshort/pkg/redis"
)

// Run wires the application together and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := httplog.NewLogger("bigshort", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})

	db, err := pkgpostgres.New(
		ctx,
		cfg.Postgres.DSN(),
		pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pkgpostgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	rdb, err := pkgredis.New(
		ctx,
		cfg.Redis.Addr(),
		pkgredis.WithPassword(cfg.Redis.Password),
		pkgredis.WithDB(cfg.Redis.DB),
		pkgredis.WithPoolSize(cfg.Redis.PoolSize),
		pkgredis.WithDialTimeout(cfg.Redis.DialTimeout),
		pkgredis.WithReadTimeout(cfg.Redis.ReadTimeout),
		pkgredis.WithWriteTimeout(cfg.Redis.WriteTimeout),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}
	defer rdb.Close()

	urlRepo := postgres.NewURLRepository(db)
	codePool := pool.New(rdb)
	resolutionCache := cache.New(rdb, cfg.Shortener.PromotedCacheTTL)

	accountant := clicks.New(urlRepo, logger.Logger, cfg.Shortener.ClickBufferSize)
	defer accountant.Close()

	urlSvc := service.NewURLService(
		codePool,
		resolutionCache,
		urlRepo,
		accountant,
		logger.Logger,
		cfg.Shortener.CustomCodeMinLength,
		cfg.Shortener.CustomCodeMaxLength,
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, urlSvc, cfg.BaseURL),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
