/*
main.go - API server entry point

PURPOSE:
  Initializes and starts the profit commission engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (env / .env)
  2. Initialize SQLite store
  3. Build calculator over the store
  4. Configure HTTP router and optional cron scheduler
  5. Start server with graceful shutdown

CONFIGURATION (environment):
  PORT                       HTTP server port (default: 8080)
  TRUEUP_DB                  SQLite database path (default: commission.db)
                             Use ":memory:" for an in-memory database
  LOG_LEVEL                  zerolog level (default: info)
  SCHEDULE_FILE              Optional YAML schedule of cron-driven runs
  ALLOW_NEGATIVE_COMMISSION  Permit negative true-up deltas (default: false)
  MIN_COMMISSION_RATE        Floor-guard rate (default: 0.05)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler and wait for in-flight runs
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Cron-driven runs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian/commission-engine/api"
	"github.com/meridian/commission-engine/config"
	"github.com/meridian/commission-engine/store/sqlite"
	"github.com/meridian/commission-engine/trueup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	calc := trueup.NewCalculator(store, log)
	calc.Config.AllowNegativeCommission = cfg.AllowNegativeCommission
	calc.Config.MinCommissionRate = cfg.MinCommissionRate

	handler := api.NewHandler(store, calc, log)
	router := api.NewRouter(handler)

	// Optional cron-driven runs
	var scheduler *api.Scheduler
	if cfg.ScheduleFile != "" {
		sched, err := config.LoadSchedule(cfg.ScheduleFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.ScheduleFile).Msg("failed to load schedule")
		}
		scheduler, err = api.NewScheduler(calc, sched, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build scheduler")
		}
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
