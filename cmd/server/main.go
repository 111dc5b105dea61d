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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/henry1266/pharmacy-pos-sub005/internal/cache"
	"github.com/henry1266/pharmacy-pos-sub005/internal/config"
	"github.com/henry1266/pharmacy-pos-sub005/internal/httpapi"
	"github.com/henry1266/pharmacy-pos-sub005/internal/logger"
	"github.com/henry1266/pharmacy-pos-sub005/internal/metrics"
	"github.com/henry1266/pharmacy-pos-sub005/internal/paymentstatus"
	"github.com/henry1266/pharmacy-pos-sub005/internal/service"
	"github.com/henry1266/pharmacy-pos-sub005/internal/store"
	"github.com/henry1266/pharmacy-pos-sub005/internal/store/memory"
	pgstore "github.com/henry1266/pharmacy-pos-sub005/internal/store/postgres"
	redisstore "github.com/henry1266/pharmacy-pos-sub005/internal/store/redis"
	"github.com/henry1266/pharmacy-pos-sub005/internal/upstream"
)

const serviceName = "pharmacy-pos-reconciler"

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})

	if err := run(cfg, log); err != nil {
		log.Error(context.Background(), "server exited", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(log.WithField(context.Background(), "addr", cfg.Address()), "listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case <-sig:
	case err := <-serveErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		runErr = multierr.Append(runErr, fmt.Errorf("shutdown: %w", err))
	}
	runErr = multierr.Append(runErr, app.Close())

	log.Info(context.Background(), "server stopped")
	return runErr
}

type application struct {
	handler http.Handler
	storage string
	reports string
	closers []func() error
}

func (a *application) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

// buildApp wires the storage backends, the upstream client and the HTTP
// layer. Postgres is authoritative when configured and must be reachable;
// Redis is used when it answers a ping and skipped otherwise.
func buildApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*application, error) {
	app := &application{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn(log.WithField(ctx, "addr", cfg.RedisAddr), "redis unavailable, continuing without it", err)
			_ = client.Close()
		} else {
			redisClient = client
			app.closers = append(app.closers, client.Close)
		}
	}

	var kv store.KeyValue
	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("postgres unavailable and PHARMACY_DATABASE_URL is set: %w", err), app.Close())
		}
		app.closers = append(app.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, multierr.Append(err, app.Close())
		}
		kv = pg
		app.storage = "postgres"
	case redisClient != nil:
		kv = redisstore.New(redisClient, redisstore.DefaultPrefix)
		app.storage = "redis"
	default:
		kv = memory.New()
		app.storage = "memory"
	}

	var reports cache.ReportCache = cache.NoopReportCache{}
	app.reports = "noop"
	if redisClient != nil {
		reports = cache.NewRedisReportCache(redisClient)
		app.reports = "redis"
	}

	client, err := upstream.New(upstream.Options{
		BaseURL: cfg.UpstreamURL,
		Timeout: cfg.UpstreamTimeout,
		Signer:  upstream.NewTokenSigner(cfg.ServiceTokenSecret, cfg.ServiceTokenTTL, serviceName),
		Metrics: metrics.NewUpstreamMetrics(registry),
		Logger:  log,
	})
	if err != nil {
		return nil, multierr.Append(err, app.Close())
	}

	statuses := paymentstatus.New(kv, client,
		paymentstatus.WithTTL(cfg.PaymentStatusTTL),
		paymentstatus.WithFetchTimeout(cfg.UpstreamTimeout),
		paymentstatus.WithLogger(log),
		paymentstatus.WithMetrics(metrics.NewPaymentStatusMetrics(registry)),
	)

	svc := service.New(service.Dependencies{
		Sales:         client,
		Reports:       reports,
		ReportTTL:     cfg.FifoReportTTL,
		PaymentStatus: statuses,
		Logger:        log,
	})

	api := httpapi.New(svc, httpapi.Options{
		AllowedOrigin:      cfg.AllowedOrigin,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Production:         cfg.IsProduction(),
		Logger:             log,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})
	app.handler = api.Handler()

	log.Info(log.WithFields(ctx, map[string]any{
		"storage":      app.storage,
		"report_cache": app.reports,
	}), "backends ready")
	return app, nil
}
