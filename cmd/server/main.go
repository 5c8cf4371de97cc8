package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/S1njack/price-tracker-demo/internal/config"
	"github.com/S1njack/price-tracker-demo/internal/infra"
	"github.com/S1njack/price-tracker-demo/internal/repository"
	"github.com/S1njack/price-tracker-demo/internal/router"
	"github.com/S1njack/price-tracker-demo/internal/scraper"
	"github.com/S1njack/price-tracker-demo/internal/service"
	"github.com/S1njack/price-tracker-demo/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	session, err := scraper.NewSession(scraper.Config{
		Headless:   cfg.Headless,
		BrowserBin: cfg.BrowserBin,
		MaxPages:   cfg.SearchConcurrency,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to launch browser session")
	}
	defer session.Close()

	aggCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	// Background workers are wired here (composition root) so the pool has
	// full access to all infrastructure dependencies.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupRepo := repository.NewGroupRepository(db)
	productRepo := repository.NewProductRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	aggregator := scraper.NewPriceSpy(session)
	backfillSvc := service.NewBackfillService(aggregator, groupRepo, productRepo, historyRepo)
	backfillWorker := worker.NewBackfillWorker(backfillSvc, rdb)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, backfillWorker)

	r := router.New(cfg, db, rdb, session, aggCB)

	// Periodic price re-check. Only CheckPrices runs here, so no locator is
	// wired into this service instance.
	extractor := scraper.NewExtractor(session)
	catalogSvc := service.NewCatalogService(nil, extractor, groupRepo, productRepo, historyRepo, worker.NewDispatcher(rdb), cfg.MaxTrackedProducts)
	worker.StartCheckCron(ctx, catalogSvc, time.Duration(cfg.CheckIntervalMinutes)*time.Minute)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute, // scrape-triggering endpoints are slow
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("price tracker listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
