// Command lumapix is the main entry point for the LumaPix photo pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/lumapix/lumapix/internal/agentgw"
	"github.com/lumapix/lumapix/internal/bulk"
	"github.com/lumapix/lumapix/internal/command"
	"github.com/lumapix/lumapix/internal/config"
	"github.com/lumapix/lumapix/internal/filterstate"
	"github.com/lumapix/lumapix/internal/health"
	"github.com/lumapix/lumapix/internal/observe"
	"github.com/lumapix/lumapix/internal/photo"
	"github.com/lumapix/lumapix/internal/photostore"
	"github.com/lumapix/lumapix/internal/query"
	"github.com/lumapix/lumapix/internal/registry"
	"github.com/lumapix/lumapix/internal/search"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lumapix: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lumapix: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("lumapix starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"library", cfg.Library.Path,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: cfg.Agent.Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Photo library ─────────────────────────────────────────────────────────
	library := photo.NewLibrary()
	if cfg.Library.Path != "" {
		file, err := photo.LoadLibraryFile(cfg.Library.Path)
		if err != nil {
			slog.Error("failed to load photo library", "path", cfg.Library.Path, "err", err)
			return 1
		}
		n, err := photo.ImportLibrary(library, file)
		if err != nil {
			slog.Error("failed to import photo library", "path", cfg.Library.Path, "err", err)
			return 1
		}
		slog.Info("photo library imported", "path", cfg.Library.Path, "photos", n)
	}

	// ── Storage backend ───────────────────────────────────────────────────────
	backends := config.NewRegistry()
	registerBuiltinBackends(backends)

	store, err := backends.Create(cfg.Backend)
	if err != nil {
		slog.Error("failed to create backend", "name", cfg.Backend.Name, "err", err)
		return 1
	}
	guarded := photostore.Guard(store, photostore.NewBreaker(photostore.BreakerConfig{
		Name:        cfg.Backend.Name,
		TripAfter:   cfg.Backend.Breaker.TripAfter,
		Cooldown:    cfg.Backend.Breaker.Cooldown.Std(),
		ProbeBudget: cfg.Backend.Breaker.ProbeBudget,
	}))

	if cfg.Server.MetricsAddr != "" {
		checks := health.New(
			health.BackendChecker(guarded),
			health.LibraryChecker(library),
		)
		go serveMetrics(ctx, cfg.Server.MetricsAddr, checks)
	}

	// ── Pipeline + action registry ────────────────────────────────────────────
	// The watcher callback swaps the pipeline on config reload, so holders
	// go through an atomic pointer.
	var pipeline atomic.Pointer[registry.Pipeline]
	pipeline.Store(registry.NewPipeline(library, guarded, pipelineOptions(cfg, metrics)...))

	actions := registry.NewRegistry()
	if err := pipeline.Load().Install(actions); err != nil {
		slog.Error("failed to install pipeline actions", "err", err)
		return 1
	}
	registry.SetDefault(actions)
	defer registry.SetDefault(nil)

	// ── Filter controller ─────────────────────────────────────────────────────
	controller := filterstate.NewController(filterOptions(cfg)...)
	controller.Subscribe(func(state filterstate.FilterState, mode search.CombineMode) {
		metrics.RecordFilterCommit(ctx, string(mode))
		resp, err := pipeline.Load().Search(ctx, registry.SearchRequest{Filters: &state, Mode: mode})
		if err != nil {
			if !errors.Is(err, registry.ErrNoResults) {
				slog.Warn("filter search failed", "err", err)
			}
			return
		}
		slog.Info("filters applied", "mode", mode, "results", resp.TotalCount)
	})
	defer controller.Flush()

	// Re-run the search for filters restored from the state file.
	if state, mode := controller.State(); !state.IsEmpty() {
		controller.SetFilters(filterstate.Patch{})
		slog.Info("restored persisted filters", "mode", mode)
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.SearchChanged || d.FiltersChanged || d.BulkChanged {
			// Swap in a rebuilt pipeline; the gateway resolves actions
			// through the registry on every call, so it picks this up.
			fresh := registry.NewPipeline(library, guarded, pipelineOptions(new, metrics)...)
			for _, name := range []string{
				registry.ActionSearch,
				registry.ActionParseCommand,
				registry.ActionBulkSelect,
				registry.ActionExecuteBulk,
				registry.ActionRollback,
			} {
				actions.Unregister(name)
			}
			if err := fresh.Install(actions); err != nil {
				slog.Error("failed to reinstall pipeline actions", "err", err)
				return
			}
			pipeline.Store(fresh)
			slog.Info("pipeline tuning reloaded")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Agent gateway ─────────────────────────────────────────────────────────
	if cfg.Agent.Enabled {
		version := cfg.Agent.Version
		if version == "" {
			version = "dev"
		}
		gw := agentgw.New(actions, version)
		slog.Info("serving agent tools on stdio — press Ctrl+C to shut down")
		if err := gw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("agent gateway error", "err", err)
			return 1
		}
	} else {
		slog.Info("agent gateway disabled — press Ctrl+C to shut down")
		<-ctx.Done()
	}

	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires the backend factories that ship with LumaPix.
func registerBuiltinBackends(reg *config.Registry) {
	reg.Register("memory", func(config.BackendConfig) (photostore.Store, error) {
		return photostore.NewMemory(), nil
	})

	for _, name := range reg.Names() {
		slog.Debug("registered backend", "name", name)
	}
}

// pipelineOptions translates the config into pipeline options. Zero values
// keep the package defaults.
func pipelineOptions(cfg *config.Config, metrics *observe.Metrics) []registry.PipelineOption {
	var engineOpts []search.Option
	if cfg.Search.SimilarityThreshold > 0 {
		engineOpts = append(engineOpts, search.WithSimilarityThreshold(cfg.Search.SimilarityThreshold))
	}
	if cfg.Search.MaxResults > 0 {
		engineOpts = append(engineOpts, search.WithMaxResults(cfg.Search.MaxResults))
	}
	if cfg.Search.Budget > 0 {
		engineOpts = append(engineOpts, search.WithBudget(cfg.Search.Budget.Std()))
	}
	if len(cfg.Search.Weights) > 0 {
		weights := make(map[search.Category]float64, len(cfg.Search.Weights))
		for name, w := range cfg.Search.Weights {
			weights[search.Category(name)] = w
		}
		engineOpts = append(engineOpts, search.WithWeights(weights))
	}

	opts := []registry.PipelineOption{
		registry.WithEngineOptions(engineOpts...),
		registry.WithMetrics(metrics),
	}
	if cfg.Parser.ClarificationThreshold > 0 {
		opts = append(opts, registry.WithQueryParser(
			query.New(query.WithClarificationThreshold(cfg.Parser.ClarificationThreshold))))
	}
	if cfg.Parser.ExecuteThreshold > 0 {
		opts = append(opts, registry.WithCommandOptions(command.WithExecuteThreshold(cfg.Parser.ExecuteThreshold)))
	}
	if cfg.Bulk.SelectionLimit > 0 {
		opts = append(opts, registry.WithSelectionLimit(cfg.Bulk.SelectionLimit))
	}
	if cfg.Bulk.ConfirmLimit > 0 {
		opts = append(opts, registry.WithConfirmLimit(cfg.Bulk.ConfirmLimit))
	}
	if len(cfg.Bulk.ConfirmLimits) > 0 {
		opts = append(opts, registry.WithConfirmLimits(cfg.Bulk.ConfirmLimits))
	}
	if len(cfg.Bulk.PermittedOperations) > 0 {
		opts = append(opts, registry.WithPermittedOperations(cfg.Bulk.PermittedOperations...))
	}
	var execOpts []bulk.Option
	if cfg.Bulk.BatchSize > 0 {
		execOpts = append(execOpts, bulk.WithBatchSize(cfg.Bulk.BatchSize))
	}
	if cfg.Bulk.MaxRetries > 0 {
		execOpts = append(execOpts, bulk.WithMaxRetries(cfg.Bulk.MaxRetries))
	}
	if len(execOpts) > 0 {
		opts = append(opts, registry.WithExecutorOptions(execOpts...))
	}
	return opts
}

// filterOptions translates the filters config into controller options.
func filterOptions(cfg *config.Config) []filterstate.Option {
	var opts []filterstate.Option
	if cfg.Filters.DebounceWindow > 0 {
		opts = append(opts, filterstate.WithDebounceWindow(cfg.Filters.DebounceWindow.Std()))
	}
	if cfg.Filters.Mode != "" {
		opts = append(opts, filterstate.WithCombinationMode(cfg.Filters.Mode))
	}
	if cfg.Filters.StateFile != "" {
		opts = append(opts, filterstate.WithStore(filterstate.NewFileStore(cfg.Filters.StateFile)))
	}
	return opts
}

// ── Metrics endpoint ──────────────────────────────────────────────────────────

// serveMetrics exposes the Prometheus scrape endpoint plus health probes
// until ctx is done.
func serveMetrics(ctx context.Context, addr string, checks *health.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	checks.Register(mux)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics endpoint error", "err", err)
	}
}

// ── Logger ────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
