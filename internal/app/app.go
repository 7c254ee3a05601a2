package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ticketarena/ticketarena/internal/config"
	"github.com/ticketarena/ticketarena/internal/postgres"
	redisx "github.com/ticketarena/ticketarena/internal/redis"
	postgresrepo "github.com/ticketarena/ticketarena/internal/repository/postgres"
	redisrepo "github.com/ticketarena/ticketarena/internal/repository/redis"
	"github.com/ticketarena/ticketarena/internal/service"
	"github.com/ticketarena/ticketarena/internal/service/booking"
	"github.com/ticketarena/ticketarena/internal/service/catalog"
	httpgin "github.com/ticketarena/ticketarena/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	cache      *redisrepo.Cache
	pubsub     *redisx.EventsPubSub
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN(),
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if err := postgresrepo.Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	rdb, err := redisx.New(ctx, redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	store := postgresrepo.NewStore(pool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewEventsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(
		rdb,
		redisx.KeyRateLimit("bookings"),
		cfg.Limits.BookingRate,
		cfg.Limits.BookingWindow,
	)
	idem := redisrepo.NewIdempotencyStore(rdb, cfg.Limits.IdemTTL)

	services := service.NewServices(store, cache, pubsub, limiter, service.Config{
		Catalog: catalog.Config{
			EventSummaryTTL: cfg.Cache.EventSummaryTTL,
			EventTicketsTTL: cfg.Cache.EventTicketsTTL,
		},
		Booking: booking.Config{},
	})

	router := httpgin.NewRouter(
		services,
		idem,
		logger,
		httpgin.RequestIDMiddleware(),
		httpgin.CORS(),
		httpgin.IdentityMiddleware(),
		httpgin.LoggingMiddleware(logger),
	)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		cache:  cache,
		pubsub: pubsub,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("start HTTP server: %w", err)
		}
		return nil
	})

	// Drop cached event reads when another replica mutates catalog rows.
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, eventID int64) {
			if err := a.cache.InvalidateEvent(ctx, eventID); err != nil {
				a.logger.Warn("cache invalidation failed", "event_id", eventID, "error", err)
			}
		})
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("events subscription: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
