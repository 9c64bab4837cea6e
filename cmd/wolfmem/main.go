// Command wolfmem runs the conversational memory services: the HTTP
// query surface, the intake pipeline, the embedding fleet, session
// stenographers and their supervisor, and the graph projection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolflogic/wolfmem/config"
	"github.com/wolflogic/wolfmem/pkg/embed"
	"github.com/wolflogic/wolfmem/pkg/logger"
	"github.com/wolflogic/wolfmem/pkg/memstore"
	"github.com/wolflogic/wolfmem/pkg/metrics"
	"github.com/wolflogic/wolfmem/pkg/telemetry/tracing"
	"github.com/wolflogic/wolfmem/pkg/version"
)

var (
	configPath string
	logLevel   string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:          "wolfmem",
	Short:        "Conversational memory ingestion and retrieval",
	Long:         "wolfmem captures agent CLI sessions, enriches and persists them\nas memories, backfills embeddings, projects a graph view, and serves\nsemantic retrieval over HTTP.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wolfmem %s (built %s, commit %s, %s)\n",
				version.Version, version.BuildTime, version.GitCommit, version.GoVersion)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the pieces every subcommand needs.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Manager
}

// newApp loads configuration and initializes the logger and metrics
// manager. Configuration and validation failures exit with code 2.
func newApp() *app {
	cfg, err := config.Load(configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error:\n%s\n", err)
		os.Exit(2)
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.Metrics.Enabled
	mcfg.Port = cfg.Metrics.Port
	mcfg.Path = cfg.Metrics.Path

	return &app{cfg: cfg, log: log, metrics: metrics.NewManager(mcfg)}
}

// buildOverrides maps global flags onto configuration keys.
func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})
	if logLevel != "" {
		overrides["log.level"] = logLevel
	}
	if debugMode {
		overrides["app.debug"] = true
	}
	return overrides
}

// watchConfig hot-reloads the mutable slice of configuration while a
// long-running subcommand is up: the log level always, plus whatever
// the subcommand wires through onChange. Without --config there is no
// file to watch and this is a no-op.
func (a *app) watchConfig(ctx context.Context, onChange func(config.Reloadable)) {
	if configPath == "" {
		return
	}
	watcher, err := config.NewWatcher(configPath, config.NewLoader(), config.WithWatcherLogger(a.log))
	if err != nil {
		a.log.Warn("config watch unavailable", "error", err)
		return
	}

	var mu sync.Mutex
	current := config.ExtractReloadable(a.cfg)
	watcher.OnChange(func(cfg *config.Config) {
		next := config.ExtractReloadable(cfg)
		mu.Lock()
		changed := current.Changed(next)
		levelChanged := next.LogLevel != current.LogLevel
		current = next
		mu.Unlock()
		if !changed {
			return
		}
		// Explicit --log-level and --debug flags outrank file edits.
		if levelChanged && logLevel == "" && !debugMode {
			logger.SetLevel(logger.ParseLevel(next.LogLevel))
			a.log.Info("log level updated", "level", next.LogLevel)
		}
		if onChange != nil {
			onChange(next)
		}
	})

	go func() {
		if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("config watch stopped", "error", err)
		}
	}()
}

// fatal logs the error and exits with code 1.
func (a *app) fatal(msg string, err error) {
	a.log.Error(msg, "error", err)
	os.Exit(1)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openStore connects the Postgres memory store with an Ollama query
// embedder.
func (a *app) openStore(ctx context.Context) *memstore.Store {
	store, err := memstore.New(ctx, memstore.Options{
		DSN:            a.cfg.Store.DSN(),
		EmbeddingDim:   a.cfg.Store.EmbeddingDim,
		EmbeddingModel: a.cfg.Store.EmbeddingModel,
		Embedder:       embed.NewOllamaClient(a.cfg.Store.OllamaURL),
		MaxConns:       int32(a.cfg.Store.MaxConns),
		Logger:         a.log,
	})
	if err != nil {
		a.fatal("failed to connect memory store", err)
	}
	return store
}

// startMetrics serves /metrics in the background when enabled.
func (a *app) startMetrics(ctx context.Context) {
	if !a.metrics.Enabled() {
		return
	}
	go func() {
		a.log.Info("metrics server listening", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
		if err := a.metrics.StartServer(ctx, a.cfg.Metrics.Port, a.cfg.Metrics.Path); err != nil {
			a.log.Error("metrics server error", "error", err)
		}
	}()
}

// startTracing initializes the OTLP trace exporter when enabled and
// returns a shutdown function.
func (a *app) startTracing(ctx context.Context) tracing.ShutdownFunc {
	if !a.cfg.Tracing.Enabled {
		return func(context.Context) error { return nil }
	}
	shutdown, err := tracing.Init(ctx, a.cfg.Tracing, a.cfg.App.Name, version.Version)
	if err != nil {
		a.fatal("failed to initialize tracing", err)
	}
	return shutdown
}

// shutdownTimeout returns the configured graceful-shutdown window.
func (a *app) shutdownTimeout() time.Duration {
	if t := a.cfg.Server.HTTP.ShutdownTimeout; t > 0 {
		return t
	}
	return 30 * time.Second
}
