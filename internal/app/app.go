// Package app wires configuration into the cost engine, stores and pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradecost/internal/alert"
	"github.com/newthinker/tradecost/internal/api"
	"github.com/newthinker/tradecost/internal/config"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
	"github.com/newthinker/tradecost/internal/ingest"
	"github.com/newthinker/tradecost/internal/metrics"
	"github.com/newthinker/tradecost/internal/notifier"
	"github.com/newthinker/tradecost/internal/notifier/webhook"
	"github.com/newthinker/tradecost/internal/pipeline"
	"github.com/newthinker/tradecost/internal/storage"
	"github.com/newthinker/tradecost/internal/storage/archive"
	"github.com/newthinker/tradecost/internal/storage/postgres"
	"github.com/newthinker/tradecost/internal/storage/sqlite"
)

// App is the main application orchestrator
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *cost.Engine
	pipeline pipeline.Config
	archive  archive.Storage
	metrics  *metrics.Registry
	notify   *notifier.Registry
	alerts   *alert.Evaluator

	mu     sync.Mutex
	trades storage.TradeStore
}

// New validates cfg and builds the engine, archive and metrics registry.
// The trade store is opened lazily by Trades.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := cost.New(cfg.Cost.CommissionRate)
	if err != nil {
		return nil, err
	}
	pcfg, err := pipeline.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	store, err := OpenArchive(cfg.Storage.Archive)
	if err != nil {
		return nil, err
	}

	notify, err := NewNotifiers(cfg.Notifiers)
	if err != nil {
		return nil, err
	}
	alerts, err := alert.NewEvaluator(cfg.Alerts.Rules, cfg.Alerts.Cooldown)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		pipeline: pcfg,
		archive:  store,
		notify:   notify,
		alerts:   alerts,
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewRegistry()
	}
	return a, nil
}

// OpenArchive builds the report archive named by cfg. An empty type disables archiving.
func OpenArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "localfs":
		s, err := archive.NewLocalFS(cfg.Path)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		return s, nil
	case "s3":
		s, err := archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, core.Errorf(core.ErrConfigInvalid, "unknown storage.archive.type %q", cfg.Type)
}

// NewNotifiers registers a webhook per configured notifier
func NewNotifiers(cfgs []config.NotifierConfig) (*notifier.Registry, error) {
	reg := notifier.NewRegistry()
	for _, c := range cfgs {
		w, err := webhook.FromConfig(notifier.Config{Type: c.Type, Name: c.Name, URL: c.URL, Headers: c.Headers})
		if err != nil {
			return nil, core.WrapError(core.ErrConfigMissing, err)
		}
		if err := reg.Register(w); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	return reg, nil
}

// OpenTradeStore opens the trade store named by cfg. An empty driver keeps trades in memory.
func OpenTradeStore(ctx context.Context, cfg config.TradeStoreConfig) (storage.TradeStore, error) {
	switch cfg.Driver {
	case "":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, core.Errorf(core.ErrConfigInvalid, "unknown storage.trades.driver %q", cfg.Driver)
}

// Engine returns the cost engine
func (a *App) Engine() *cost.Engine { return a.engine }

// PipelineConfig returns the pipeline settings derived from configuration
func (a *App) PipelineConfig() pipeline.Config { return a.pipeline }

// Archive returns the report archive, or nil when archiving is disabled
func (a *App) Archive() archive.Storage { return a.archive }

// Metrics returns the metrics registry, or nil when metrics are disabled
func (a *App) Metrics() *metrics.Registry { return a.metrics }

// Notifiers returns the run notifiers
func (a *App) Notifiers() *notifier.Registry { return a.notify }

// Trades opens the configured trade store on first use
func (a *App) Trades(ctx context.Context) (storage.TradeStore, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.trades != nil {
		return a.trades, nil
	}
	store, err := OpenTradeStore(ctx, a.cfg.Storage.Trades)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("trade store opened", zap.String("driver", a.cfg.Storage.Trades.Driver))
	a.trades = store
	return store, nil
}

// FileSource returns a source reading path with the configured timezone
func (a *App) FileSource(path string) pipeline.Source {
	return pipeline.FileSource{Path: path, Options: ingest.Options{Location: a.pipeline.Location}}
}

// StoreSource returns a source reading trades entered in [from, to) from the trade store
func (a *App) StoreSource(ctx context.Context, from, to time.Time) (pipeline.Source, error) {
	store, err := a.Trades(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.StoreSource{Store: store, From: from, To: to}, nil
}

// RunHeatmap runs the pipeline once over src. cfg overrides the configured
// pipeline settings when non-nil.
func (a *App) RunHeatmap(ctx context.Context, src pipeline.Source, cfg *pipeline.Config) (*pipeline.Result, error) {
	pcfg := a.pipeline
	if cfg != nil {
		pcfg = *cfg
	}
	return pipeline.New(pcfg, a.engine, src, a.archive, a.metrics, a.logger).
		WithNotifier(a.notify).
		WithAlerts(a.alerts).
		Run(ctx)
}

// Import reads a CSV file and stores its trades, skipping ones already stored.
// It returns how many trades were read and how many were new.
func (a *App) Import(ctx context.Context, path string) (read, inserted int, err error) {
	trades, err := ingest.ReadFile(path, ingest.Options{Location: a.pipeline.Location})
	if err != nil {
		if a.metrics != nil && errors.Is(err, core.ErrInvalidInput) {
			a.metrics.RecordInvalidRecord("csv")
		}
		return 0, 0, err
	}

	store, err := a.Trades(ctx)
	if err != nil {
		return 0, 0, err
	}
	inserted, err = store.Insert(ctx, trades)
	if err != nil {
		return 0, 0, fmt.Errorf("storing trades: %w", err)
	}
	if a.metrics != nil {
		a.metrics.RecordImport(inserted)
	}

	a.logger.Info("trades imported",
		zap.String("path", path),
		zap.Int("read", len(trades)),
		zap.Int("inserted", inserted),
	)
	return len(trades), inserted, nil
}

// Server builds the HTTP API. The trade store is opened so its routes are served.
func (a *App) Server(ctx context.Context) (*api.Server, error) {
	store, err := a.Trades(ctx)
	if err != nil {
		return nil, err
	}

	metricsPath := ""
	if a.metrics != nil {
		metricsPath = a.cfg.Metrics.Path
	}

	return api.NewServer(api.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		APIKey:      a.cfg.Server.APIKey,
		MetricsPath: metricsPath,
	}, api.Dependencies{
		Engine:   a.engine,
		Pipeline: a.pipeline,
		Archive:  a.archive,
		Trades:   store,
		Metrics:  a.metrics,
		Notifier: a.notify,
		Alerts:   a.alerts,
	}, a.logger)
}

// Close releases the trade store
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.trades == nil {
		return nil
	}
	err := a.trades.Close()
	a.trades = nil
	return err
}
