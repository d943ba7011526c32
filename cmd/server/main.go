// Command server runs the stock dashboard backend: the quote fetch
// pipeline, the widget store, and the HTTP/websocket API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockdash/internal/cache"
	"github.com/aristath/stockdash/internal/clients/alphavantage"
	"github.com/aristath/stockdash/internal/clients/finnhub"
	"github.com/aristath/stockdash/internal/config"
	"github.com/aristath/stockdash/internal/dashboard"
	"github.com/aristath/stockdash/internal/database"
	"github.com/aristath/stockdash/internal/quotes"
	quoteshandlers "github.com/aristath/stockdash/internal/quotes/handlers"
	"github.com/aristath/stockdash/internal/reliability"
	"github.com/aristath/stockdash/internal/scheduler"
	"github.com/aristath/stockdash/internal/server"
	"github.com/aristath/stockdash/internal/stream"
	"github.com/aristath/stockdash/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting stockdash")

	dashboardDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "dashboard.db"),
		Profile: database.ProfileStandard,
		Name:    "dashboard",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open dashboard database")
	}
	defer dashboardDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{dashboardDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}
	}

	cacheMgr := cache.NewManager(cache.NewRepository(cacheDB.Conn()), log)

	providers := buildProviders(cfg, log)
	if len(providers) == 0 {
		log.Warn().Msg("No provider API keys configured, serving demo data only")
	}
	quoteService := quotes.NewService(providers, cacheMgr, cfg.DisableDemoFallback, log)

	var history quoteshandlers.HistorySource
	if cfg.AlphaVantage.Enabled() {
		history = alphavantage.NewClient(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL, log)
	}

	store := dashboard.NewStore(dashboard.NewSQLiteStorage(dashboardDB.Conn()), log)
	store.Hydrate()

	sched := scheduler.New(log)
	cleanupJob := cache.NewCleanupJob(cacheMgr, log)
	if err := sched.AddJob(cache.SweepSchedule, cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}
	maintenanceJob := database.NewMaintenanceJob([]*database.DB{dashboardDB, cacheDB}, log)
	if err := sched.AddJob("@every 1h", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register database maintenance job")
	}
	registerBackupJob(cfg, sched, dashboardDB, cacheDB, log)
	sched.Start()
	defer sched.Stop()

	// Trim whatever expired while the process was down
	if err := sched.RunNow(cleanupJob); err != nil {
		log.Warn().Err(err).Msg("Startup cache sweep failed")
	}

	srv := server.New(server.Config{
		Log:         log,
		Cfg:         cfg,
		DashboardDB: dashboardDB,
		CacheDB:     cacheDB,
		Cache:       cacheMgr,
		Store:       store,
		Quotes:      quoteService,
		History:     history,
		Streamer:    stream.NewStreamer(quoteService, log),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("Server stopped")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// buildProviders assembles the configured providers in fallback order.
// Alpha Vantage leads; a provider without credentials is skipped entirely.
func buildProviders(cfg *config.Config, log zerolog.Logger) []quotes.Provider {
	var providers []quotes.Provider
	if cfg.AlphaVantage.Enabled() {
		providers = append(providers, alphavantage.NewClient(cfg.AlphaVantage.APIKey, cfg.AlphaVantage.BaseURL, log))
	}
	if cfg.Finnhub.Enabled() {
		providers = append(providers, finnhub.NewClient(cfg.Finnhub.APIKey, cfg.Finnhub.BaseURL, log))
	}
	return providers
}

// registerBackupJob wires the nightly S3 backup when a bucket is configured.
func registerBackupJob(cfg *config.Config, sched *scheduler.Scheduler, dashboardDB, cacheDB *database.DB, log zerolog.Logger) {
	if !cfg.Backup.Enabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s3Client, err := reliability.NewS3Client(ctx, cfg.Backup, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize S3 client, backups disabled")
		return
	}

	backupService := reliability.NewBackupService(
		[]*database.DB{dashboardDB, cacheDB},
		s3Client,
		cfg.DataDir,
		log,
	)
	if err := sched.AddJob("@daily", reliability.NewBackupJob(backupService)); err != nil {
		log.Error().Err(err).Msg("Failed to register backup job")
	}
}
