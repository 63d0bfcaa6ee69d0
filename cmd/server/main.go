package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/dance-booking/internal/config"
	"github.com/iliyamo/dance-booking/internal/database"
	"github.com/iliyamo/dance-booking/internal/handler"
	"github.com/iliyamo/dance-booking/internal/jobs"
	"github.com/iliyamo/dance-booking/internal/logger"
	"github.com/iliyamo/dance-booking/internal/metrics"
	"github.com/iliyamo/dance-booking/internal/middleware"
	"github.com/iliyamo/dance-booking/internal/queue"
	"github.com/iliyamo/dance-booking/internal/ratelimit"
	"github.com/iliyamo/dance-booking/internal/repository"
	"github.com/iliyamo/dance-booking/internal/router"
	"github.com/iliyamo/dance-booking/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	// Store
	store, closeStore, err := openStore(ctx, cfg, rec, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis backs the rate limiter and the response cache; both degrade
	// gracefully when it is unreachable.
	var (
		limiter ratelimit.Limiter
		rdb     redis.Cmdable
	)
	bucket := ratelimit.Bucket{
		Capacity:       cfg.RateLimit.Capacity,
		RefillTokens:   cfg.RateLimit.RefillTokens,
		RefillInterval: cfg.RateLimit.RefillInterval,
		TTL:            cfg.RateLimit.TTL,
	}
	if client, err := config.NewRedisClient(ctx, cfg.Redis); err != nil {
		log.Warn("redis unavailable, using in-memory rate limiter and no response cache", "err", err)
		mem := ratelimit.NewMemoryLimiter(bucket)
		defer mem.Stop()
		limiter = mem
	} else {
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client, bucket)
		rdb = client
	}
	cache := middleware.NewResponseCache(cfg.Cache, rdb, log)

	// Notifications go through RabbitMQ when enabled, otherwise straight
	// into the store.
	var notifier service.Notifier = service.StoreNotifier{Store: store}
	if cfg.NotificationsBroker {
		pub := queue.NewPublisher(cfg.RabbitMQURL, cfg.NotifyQueue)
		defer pub.Close()
		notifier = pub
	}

	// Services
	ledger := service.NewCreditLedger(cfg.CreditCost)
	reservations := service.NewReservationManager(store, ledger, notifier, rec, log, cfg.RefundWindow)
	credits := service.NewCreditService(store, ledger, notifier, rec, log)
	notifications := service.NewNotificationService(store, notifier, rec, log)
	reports := service.NewReportService(store, cfg.ReportRatePerClass, log)
	classes := service.NewClassService(store)
	users := service.NewUserService(store, ledger, cfg.BcryptCost)

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.Register(e, router.Handlers{
		Auth:          handler.NewAuthHandler(cfg, store, log),
		Reservations:  handler.NewReservationHandler(reservations, log),
		Classes:       handler.NewClassHandler(classes, cache, log),
		Notifications: handler.NewNotificationHandler(notifications, log),
		Reports:       handler.NewReportHandler(reports, log),
		Users:         handler.NewUserHandler(users, credits, log),
		Webhooks:      handler.NewWebhookHandler(credits, notifications, log),
	}, router.Options{
		JWTSecret:     cfg.JWTSecret,
		WebhookSecret: cfg.WebhookSecret,
		RateLimit:     middleware.RateLimit(cfg.RateLimit, limiter, log),
		Cache:         cache.Middleware(),
		Store:         store,
		Metrics:       metrics.Handler(reg),
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if cfg.NotificationsBroker {
		consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.NotifyQueue, store, log)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if cfg.Jobs.Enabled {
		sched := jobs.NewScheduler(log, rec)
		for _, j := range jobs.Standard(cfg.Jobs, jobs.Deps{
			Reservations:       reservations,
			Reports:            reports,
			Credits:            credits,
			CreditExpiryMonths: cfg.CreditExpiryMonths,
			Log:                log,
		}) {
			if err := sched.Add(j); err != nil {
				return err
			}
		}
		g.Go(func() error { return sched.Run(ctx) })
	}

	return g.Wait()
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg config.Config, rec metrics.Recorder, log *slog.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn("using the in-memory store; data is lost on restart")
		return repository.NewMemory(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	s := repository.NewSQLStore(db, cfg.TxMaxRetries)
	s.OnRetry = func(err error) {
		rec.TxRetried()
		log.Debug("retrying transaction", "err", err)
	}
	return s, func() { _ = db.Close() }, nil
}
