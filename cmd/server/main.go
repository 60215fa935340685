package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vytor/cardsched/internal/api"
	"github.com/vytor/cardsched/internal/config"
	"github.com/vytor/cardsched/internal/db"
	"github.com/vytor/cardsched/internal/jobs"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository/sqlite"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/services"
	"github.com/vytor/cardsched/internal/worker"
)

func main() {
	cfg := config.Load()

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()

	log.Info("cardsched server starting")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("timezone=%s", loc)
	log.Debug("maintenance_interval=%ds", cfg.MaintenanceInterval)
	log.Debug("worker_count=%d, worker_queue_size=%d", cfg.WorkerCount, cfg.WorkerQueueSize)
	log.Debug("rate_limit=%.1f/s burst %d", cfg.RateLimitRPS, cfg.RateLimitBurst)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := sqlite.NewStore(database.DB)
	scheduler, err := sched.New(ctx, store,
		sched.WithLocation(loc),
		sched.WithHooks(sched.Hooks{Leech: func(ctx context.Context, card models.Card) {
			logger.FromContext(ctx).WithPrefix("sched").Warn("card %d of note %d is a leech", card.ID, card.NoteID)
		}}),
	)
	if err != nil {
		log.Error("failed to load scheduler: %v", err)
		os.Exit(1)
	}
	study := services.NewStudyService(scheduler, store.Notes())

	pool := worker.NewPool(cfg.WorkerCount, cfg.WorkerQueueSize)
	queue := jobs.NewWorkerQueue(pool, study)

	srv := &api.Server{
		Study:   study,
		Jobs:    queue,
		DB:      database,
		Limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	pool.Start(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Duration(cfg.MaintenanceInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := queue.EnqueueRollover(); err != nil {
					log.Warn("skipping rollover check: %v", err)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error: %v", err)
	}

	log.Debug("stopping worker pool")
	pool.Stop()
	log.Info("cardsched server stopped")
}
