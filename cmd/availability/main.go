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

	"github.com/redis/go-redis/v9"

	"github.com/example/reservation-availability/internal/application"
	"github.com/example/reservation-availability/internal/config"
	"github.com/example/reservation-availability/internal/hauki"
	httptransport "github.com/example/reservation-availability/internal/http"
	"github.com/example/reservation-availability/internal/persistence/sqlite"
	"github.com/example/reservation-availability/internal/trigger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	now := time.Now

	topologyRepo := sqlite.NewTopologyRepository(storage)
	reservationRepo := sqlite.NewReservationRepository(storage)
	hierarchyRepo := sqlite.NewHierarchyRepository(storage)
	affectingRepo := sqlite.NewAffectingTimeSpanRepository(storage)
	haukiRepo := sqlite.NewHaukiRepository(storage)

	haukiClient := hauki.NewClient(cfg.HaukiBaseURL, cfg.HaukiFetchTimeout)

	hierarchyService := application.NewHierarchyService(topologyRepo, hierarchyRepo, logger)
	openingService := application.NewOpeningHoursService(haukiRepo, haukiClient, loc, cfg.HaukiLookahead, cfg.HaukiFetchRange, now, logger)
	blockingService := application.NewBlockingService(reservationRepo, topologyRepo, hierarchyService, affectingRepo, now, logger)

	var resultCache application.ResultCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		resultCache = application.NewRedisResultCache(client, cfg.CacheTTL, logger)
		logger.Info("using redis result cache", "addr", cfg.RedisAddr)
	} else {
		resultCache = application.NewLRUResultCache(cfg.CacheSize, cfg.CacheTTL)
	}

	availabilityService := application.NewAvailabilityService(topologyRepo, openingService, blockingService, resultCache, loc, now, logger)
	availabilityService.SetMaxParallel(cfg.SearchParallel)

	worker := trigger.NewWorker(logger)
	worker.Register(trigger.KindHierarchy, hierarchyService.Rebuild)
	worker.Register(trigger.KindAffectingSpans, blockingService.RebuildAffectingSpans)
	worker.Register(trigger.KindOpeningHours, openingService.RefreshAll)

	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("refresh worker stopped", "error", err)
		}
	}()

	// Derived caches are rebuilt on startup so searches never run against an
	// empty closure or blocking table.
	worker.Trigger(trigger.KindHierarchy)
	worker.Trigger(trigger.KindAffectingSpans)
	worker.Trigger(trigger.KindOpeningHours)

	if cfg.AMQPURL != "" {
		consumer := trigger.NewConsumer(cfg.AMQPURL, cfg.AMQPQueue, worker, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("refresh consumer stopped", "error", err)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(cfg.HaukiSyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				worker.Trigger(trigger.KindOpeningHours)
			}
		}
	}()

	searchHandler := httptransport.NewSearchHandler(availabilityService, loc, logger)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Search:     searchHandler,
		Health:     storage,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("availability API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
