package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/apexstats/apex-tracker/internal/cdata"
	"github.com/apexstats/apex-tracker/internal/config"
	"github.com/apexstats/apex-tracker/internal/events"
	"github.com/apexstats/apex-tracker/internal/games"
	"github.com/apexstats/apex-tracker/internal/network"
	"github.com/apexstats/apex-tracker/internal/poller"
	"github.com/apexstats/apex-tracker/internal/store"
	"github.com/apexstats/apex-tracker/internal/stryder"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// App is the main application container.
type App struct {
	config        config.Config
	manager       *poller.Manager
	recorder      *poller.Recorder
	scheduler     *games.Scheduler
	configUpdates chan config.Config
}

// NewApp wires the pollers, the ingestion counters and the reconstruction scheduler around a
// shared router. To actually start the app you must call Start().
func NewApp(conf config.Config, database *sql.DB, catalog *cdata.Catalog, configUpdates chan config.Config) *App {
	queries := store.New(database)
	router := events.NewRouter()
	fetcher := stryder.New(network.NewClient(conf.HTTPTimeout), conf.StryderURL, conf.UserAgent)

	return &App{
		config:        conf,
		manager:       poller.NewManager(fetcher, queries, router, conf.PollerOptions()),
		recorder:      poller.NewRecorder(queries, router),
		scheduler:     games.NewScheduler(games.NewProcessor(queries, catalog), router, conf.ReconstructInterval),
		configUpdates: configUpdates,
	}
}

// Start brings up the background goroutines and blocks until ctx is cancelled or the poller fails.
func (app *App) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	// The helpers stop with the manager so a dead poller brings the whole process down.
	helperCtx, cancel := context.WithCancel(groupCtx)

	group.Go(func() error {
		defer cancel()

		return app.manager.Run(groupCtx, app.config.PollerPlayers())
	})
	group.Go(func() error {
		app.recorder.Start(helperCtx)

		return nil
	})
	group.Go(func() error {
		app.scheduler.Start(helperCtx)

		return nil
	})
	group.Go(func() error {
		app.configSyncer(helperCtx)

		return nil
	})

	return group.Wait()
}

// configSyncer applies player list changes from config file reloads. Other settings require a restart.
func (app *App) configSyncer(ctx context.Context) {
	for {
		select {
		case conf := <-app.configUpdates:
			if err := app.manager.Sync(conf.PollerPlayers()); err != nil {
				slog.Error("Failed to apply player changes", slog.String("error", err.Error()))

				continue
			}

			slog.Info("Applied config reload", slog.Int("players", len(conf.Players)))
		case <-ctx.Done():
			return
		}
	}
}

func loadConfig(changes chan config.Config) (*config.Loader, config.Config, error) {
	// Make sure our config & data home exists.
	if err := os.MkdirAll(path.Join(xdg.ConfigHome, config.ConfigDirName), 0o750); err != nil {
		return nil, config.Config{}, errors.Join(err, errApp)
	}

	loader := config.NewLoader(changes)
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}

	userConfig, errConfig := loader.Read()
	if errConfig != nil {
		return nil, config.Config{}, errors.Join(errConfig, errApp)
	}

	return loader, userConfig, nil
}

func closeWithLog(name string, closer io.Closer) {
	if err := closer.Close(); err != nil {
		slog.Error("Failed to close "+name, slog.String("error", err.Error()))
	}
}

func openDatabase(ctx context.Context, conf config.Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(conf.DatabasePath), 0o750); err != nil {
		return nil, errors.Join(err, errApp)
	}

	database, errDB := store.Open(ctx, conf.DatabasePath, true)
	if errDB != nil {
		return nil, errors.Join(errDB, errApp)
	}

	return database, nil
}

// run is the main entry point of apex-tracker.
func run(cmd *cobra.Command, _ []string) error {
	// If PROFILE is set, it will be used as the output file path for the profiler.
	if len(os.Getenv("PROFILE")) > 0 {
		f, err := os.Create(os.Getenv("PROFILE"))
		if err != nil {
			return errors.Join(err, errApp)
		}

		if errStart := pprof.StartCPUProfile(f); errStart != nil {
			return errors.Join(errStart, errApp)
		}
		defer pprof.StopCPUProfile()
	}

	configUpdates := make(chan config.Config)
	loader, userConfig, errConfig := loadConfig(configUpdates)
	if errConfig != nil {
		return errConfig
	}

	logFile, errLogger := config.LoggerInit(userConfig.LogFile, config.ParseLevel(userConfig.LogLevel))
	if errLogger != nil {
		return errors.Join(errLogger, errApp)
	}
	defer closeWithLog("log file", logFile)

	slog.Info("Starting apex-tracker", slog.String("version", BuildVersion),
		slog.String("commit", BuildCommit), slog.String("date", BuildDate),
		slog.String("go", runtime.Version()), slog.String("config", loader.Path()))

	// Polling must never start with an incomplete catalog.
	catalog, errCatalog := cdata.LoadFile(userConfig.CatalogPath)
	if errCatalog != nil {
		slog.Error("Catalog unavailable, run `apex-tracker catalog update` first",
			slog.String("path", userConfig.CatalogPath))

		return errors.Join(errCatalog, errApp)
	}

	slog.Info("Loaded cdata catalog", slog.String("version", catalog.Version()), slog.Int("entries", catalog.Len()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, errDB := openDatabase(ctx, userConfig)
	if errDB != nil {
		return errDB
	}
	defer closeWithLog("database", database)

	loader.Watch()

	if len(userConfig.Players) == 0 {
		slog.Warn("No players configured, add one with `apex-tracker players add`")
	}

	if err := NewApp(userConfig, database, catalog, configUpdates).Start(ctx); err != nil {
		return errors.Join(err, errApp)
	}

	slog.Info("Shutdown complete")

	return nil
}
