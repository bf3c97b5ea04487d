// Package bootstrap wires all dependencies and starts the application:
// schema registry, link managers, dispatchers, and the operational HTTP
// listener.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finswitch/finswitch/adapters/clock"
	"github.com/finswitch/finswitch/adapters/metrics"
	"github.com/finswitch/finswitch/adapters/tcp"
	"github.com/finswitch/finswitch/adapters/trace"
	"github.com/finswitch/finswitch/app"
	"github.com/finswitch/finswitch/config"
	"github.com/finswitch/finswitch/core/codec"
	"github.com/finswitch/finswitch/core/events"
	"github.com/finswitch/finswitch/core/link"
	"github.com/finswitch/finswitch/core/registry"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Link bundles one link's manager and dispatcher.
type Link struct {
	Config     config.LinkConfig
	Manager    *link.Manager
	Dispatcher *app.DispatcherService
}

// App represents the running application.
type App struct {
	Logger   zerolog.Logger
	Holder   *config.Holder
	Registry *registry.Registry
	Metrics  *metrics.Collector
	Bus      *events.Bus
	Engine   *codec.Engine
	Links    map[string]*Link

	httpServer    *http.Server
	schemaWatcher *fsnotify.Watcher
	traces        *trace.Rolling
	stopCh        chan struct{}
}

// New creates and initializes the application from a config file path.
func New(configPath string) (*App, error) {
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	holder, err := config.NewHolder(configPath, bootLogger)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing finswitch")

	a := &App{
		Logger:   logger,
		Holder:   holder,
		Registry: registry.New(),
		Bus:      events.NewBus(logger),
		Engine:   codec.NewEngine(logger),
		Links:    make(map[string]*Link),
		traces:   trace.NewRolling(),
		stopCh:   make(chan struct{}),
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	} else {
		// Unregistered collector: instruments stay live, nothing is exported.
		a.Metrics = metrics.NewWithRegistry(nil)
	}

	if err := a.loadSchemas(cfg.Schemas.Path); err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	if err := a.initLinks(cfg); err != nil {
		return nil, fmt.Errorf("init links: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.initHTTPServer(cfg.Metrics)
	}

	// Config reload also re-reads the schema files.
	holder.OnChange(func(c *config.Config) {
		if err := a.loadSchemas(c.Schemas.Path); err != nil {
			logger.Error().Err(err).Msg("schema reload failed, keeping old schemas")
		}
	})

	if cfg.Schemas.Watch {
		if err := a.watchSchemas(cfg.Schemas.Path); err != nil {
			logger.Warn().Err(err).Msg("schema file watching unavailable")
		}
	}

	return a, nil
}

func (a *App) loadSchemas(path string) error {
	if err := a.Registry.Reload(path); err != nil {
		a.Metrics.SchemaReloadErrors.Inc()
		return err
	}
	a.Metrics.SchemaReloads.Inc()
	a.Metrics.ChannelsRegistered.Set(float64(a.Registry.Len()))
	a.Bus.PublishAsync(context.Background(), events.Event{Name: events.SchemaReloaded})
	a.Logger.Info().
		Str("path", path).
		Int("channels", a.Registry.Len()).
		Msg("channel schemas loaded")
	return nil
}

func (a *App) initLinks(cfg *config.Config) error {
	clk := clock.Real{}

	for _, lc := range cfg.Links {
		resolved, ok := a.Registry.Get(lc.Channel)
		if !ok {
			return fmt.Errorf("link %s: unknown channel %q", lc.Name, lc.Channel)
		}

		dialer := tcp.NewDialer(lc.ToTCP())
		mgr, err := link.NewManager(lc.ToLink(), dialer, clk, a.Bus, a.Metrics, a.Logger)
		if err != nil {
			return err
		}

		dispatcher := app.NewDispatcherService(resolved, mgr, a.Engine, a.traces, clk,
			a.Metrics, a.Logger, app.DispatcherConfig{DefaultTimeout: lc.RequestTimeout})
		mgr.SetHeartbeatFrame(app.NewHeartbeatFactory(resolved, a.Engine, a.traces))

		a.Links[lc.Name] = &Link{
			Config:     lc,
			Manager:    mgr,
			Dispatcher: dispatcher,
		}
	}

	return nil
}

// watchSchemas reloads the registry whenever a schema file changes on disk.
func (a *App) watchSchemas(path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}
	a.schemaWatcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
					continue
				}
				a.Logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("schema file changed")
				if err := a.loadSchemas(path); err != nil {
					a.Logger.Error().Err(err).Msg("schema reload failed, keeping old schemas")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				a.Logger.Error().Err(err).Msg("schema watcher error")
			case <-a.stopCh:
				return
			}
		}
	}()

	a.Logger.Info().Str("path", path).Msg("watching schema files for changes")
	return nil
}

// Run starts the links and the operational listener and blocks until
// shutdown.
func (a *App) Run() error {
	ctx := context.Background()

	a.Holder.WatchSignals()
	if err := a.Holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watching unavailable")
	}

	for name, l := range a.Links {
		if err := l.Manager.Start(ctx); err != nil {
			a.Logger.Error().Err(err).Str("link", name).Msg("link failed to start")
		}
	}

	errCh := make(chan error, 1)
	if a.httpServer != nil {
		go func() {
			a.Logger.Info().
				Str("addr", a.httpServer.Addr).
				Msg("starting operational http server")
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(a.stopCh)

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	for name, l := range a.Links {
		l.Manager.Stop()
		a.Logger.Info().Str("link", name).Msg("link stopped")
	}

	if a.schemaWatcher != nil {
		a.schemaWatcher.Close()
	}
	a.Holder.Stop()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
