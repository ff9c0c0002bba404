package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"backoffice/internal/config"
	"backoffice/internal/db"
	httpapi "backoffice/internal/http"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/repository"
	"backoffice/internal/search"
	"backoffice/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "backoffice"}).Error(context.Background(), "config.load_failed", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "backoffice",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error(ctx, "database.connect_failed", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		log.Error(ctx, "database.migrate_failed", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo := repository.New(pool)

	var cache search.Cache = search.NewMemoryCache()
	if cfg.Redis.Enabled() {
		client, err := newRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Error(ctx, "redis.connect_failed", err)
			os.Exit(1)
		}
		defer client.Close()
		cache = search.NewRedisCache(client, cfg.Redis.Key)
		log.Info(log.WithField(ctx, "key", cfg.Redis.Key), "search.cache_redis")
	}

	enricher := search.NewEnricher(
		search.NewLoaderLookup(repo, cfg.Search.BatchWait),
		cache,
		search.WithRecorder(metrics.NewSearchMetrics(reg)),
		search.WithLogger(log),
	)
	svc := service.New(repo, enricher, service.Options{
		Logger:        log,
		Metrics:       metrics.NewTimelineMetrics(reg),
		BarcodePrefix: cfg.Barcode.Prefix,
		SearchLimit:   cfg.Search.TransactionLimit,
	})

	handler := httpapi.NewHandler(svc, log)
	router := httpapi.NewRouter(handler, httpapi.RouterOptions{
		Logger:         log,
		RequestTimeout: cfg.App.RequestTimeout,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.App.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info(log.WithField(ctx, "addr", server.Addr), "server.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server.failed", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn(ctx, "server.shutdown_failed", err)
		if closeErr := server.Close(); closeErr != nil {
			log.Warn(ctx, "server.close_failed", closeErr)
		}
	}
	log.Info(ctx, "server.stopped")
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
