package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/restaurant-orders/internal/config"
	"github.com/iliyamo/restaurant-orders/internal/database"
	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/handler"
	"github.com/iliyamo/restaurant-orders/internal/imagehost"
	"github.com/iliyamo/restaurant-orders/internal/middleware"
	"github.com/iliyamo/restaurant-orders/internal/queue"
	"github.com/iliyamo/restaurant-orders/internal/realtime"
	"github.com/iliyamo/restaurant-orders/internal/receipt"
	"github.com/iliyamo/restaurant-orders/internal/repository"
	"github.com/iliyamo/restaurant-orders/internal/router"
	"github.com/iliyamo/restaurant-orders/internal/service"
)

func main() {
	cfg := config.Load()

	logger := log.New("restaurant")
	logger.SetLevel(parseLevel(cfg.LogLevel))
	logger.SetHeader(`${time_rfc3339} ${level} ${short_file}:${line}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName), database.Options{
		MaxOpenConns:    cfg.DBMaxOpen,
		ConnMaxLifetime: 30 * time.Minute,
		Attempts:        cfg.DBAttempts,
		Backoff:         time.Second,
	})
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable: response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	// ---- Change notification ----
	// Subscribers run in order: the cache generation moves before any
	// client is told to refetch.
	bus := events.NewBus(cfg.InstanceID)
	bus.Subscribe(events.Wildcard, middleware.NewCacheInvalidator(cacheCfg, rdb, logger).Handle)
	hub := realtime.NewHub(logger)
	bus.Subscribe(events.Wildcard, hub.Handle)

	var publisher *queue.Publisher
	var consumer *queue.Consumer
	if cfg.Fanout {
		publisher = queue.NewPublisher(cfg.AMQPURL, cfg.InstanceID, 256, logger)
		consumer = queue.NewConsumer(cfg.AMQPURL, cfg.InstanceID, bus, logger)
		bus.Subscribe(events.Wildcard, publisher.Handle)
	}

	// ---- Services ----
	stores := service.NewSQLStores(db)
	var images service.ImageHost
	if c := imagehost.New(cfg.ImageHost); c != nil {
		images = c
	} else {
		logger.Warn("image host not configured: meal image uploads disabled")
	}

	auth := service.NewAuthService(service.AuthConfig{
		Secret:         cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, stores, bus)
	orders := service.NewOrderService(stores, bus, logger, cfg.ReportLocation)
	catalog := service.NewCatalogService(stores, images, bus, logger)
	tables := service.NewTableService(stores, bus)
	accounts := service.NewAccountService(stores, bus, cfg.BcryptCost)
	reports := service.NewReportService(stores, cfg.ReportLocation)
	plans := service.NewPlanService(stores, cfg.InquiryPhone, cfg.ReportLocation)

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warnf("%s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			logger.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(auth, cfg.JWTSecret),
		Orders:   handler.NewOrderHandler(orders, receipt.New(cfg.ReportLocation), cfg.ReportLocation),
		Catalog:  handler.NewCatalogHandler(catalog),
		Tables:   handler.NewTableHandler(tables),
		Accounts: handler.NewAccountHandler(accounts),
		Reports:  handler.NewReportHandler(reports, plans),
		Realtime: handler.NewRealtimeHandler(hub),
		Ready:    handler.Ready(db),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
		AuthLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig("auth"), rdb),
		APILimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig("api"), rdb),
	})

	// ---- Run ----
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Infof("listening on %s (env=%s, instance=%s)", addr, cfg.Env, cfg.InstanceID)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return e.Shutdown(sctx)
	})
	g.Go(func() error {
		purgeTokens(gctx, repository.NewTokenRepo(db), logger)
		return nil
	})
	if publisher != nil {
		g.Go(func() error { return publisher.Run(gctx) })
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("server: %v", err)
	}
	logger.Info("shut down")
}

// purgeTokens deletes refresh tokens that expired or were revoked more
// than a day ago, once at start and then hourly.
func purgeTokens(ctx context.Context, tokens *repository.TokenRepo, logger *log.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := tokens.PurgeExpired(ctx, time.Now().UTC().Add(-24*time.Hour))
		if err != nil && ctx.Err() == nil {
			logger.Warnf("token purge: %v", err)
		} else if n > 0 {
			logger.Infof("token purge: removed %d refresh tokens", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func parseLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	}
	return log.INFO
}
