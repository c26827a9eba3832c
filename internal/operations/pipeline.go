package operations

import (
	"context"
	"log/slog"
	"time"

	"optpricer/internal/config"
	"optpricer/internal/dataprocessing"
	"optpricer/internal/datasource"
	apperrors "optpricer/internal/errors"
	"optpricer/internal/exporter"
	"optpricer/internal/files"
	"optpricer/internal/infrastructure"
	"optpricer/internal/pricing"
	"optpricer/internal/validation"
	"optpricer/pkg/contracts/domain"
)

// Connector names used in logs
const (
	ConnectorBackOffice = "back_office"
	ConnectorCrate      = "crate"
)

// DBPositions reads positions from the back-office valuation table
type DBPositions struct {
	Store       *datasource.PositionStore
	StrategyIDs []string
}

// FetchPositions implements PositionSource
func (p DBPositions) FetchPositions(ctx context.Context, asOf time.Time) ([]domain.PositionRow, error) {
	return p.Store.Fetch(ctx, asOf.Format(config.DateLayout), p.StrategyIDs)
}

// FilePositions reads positions from a CSV or XLSX export
type FilePositions struct {
	Path   string
	Filter datasource.PositionFilter
	Logger *slog.Logger
}

// FetchPositions implements PositionSource. The export is taken as of asOf.
// Path may name a directory of exports, in which case the newest one is read.
func (p FilePositions) FetchPositions(ctx context.Context, _ time.Time) ([]domain.PositionRow, error) {
	path, err := files.ResolveInput(p.Path)
	if err != nil {
		return nil, err
	}
	if path != p.Path && p.Logger != nil {
		p.Logger.InfoContext(ctx, "using latest positions export",
			slog.String("dir", p.Path),
			slog.String("file", path))
	}
	return datasource.ReadPositions(path, p.Filter, p.Logger)
}

// Dependencies replaces the external systems of a pipeline. Nil fields are
// built from configuration.
type Dependencies struct {
	Positions PositionSource
	Expiries  ExpirySource
	Caller    pricing.Caller
	Providers *infrastructure.OTelProviders
	Metrics   *infrastructure.PipelineMetrics
}

// Pipeline is a Manager loaded with the standard steps for one valuation date
type Pipeline struct {
	*Manager
	AsOf time.Time
}

// Run executes every step with a fresh run id
func (p *Pipeline) Run(ctx context.Context) (*domain.RunSummary, *OperationState, error) {
	return p.Execute(ctx, "", p.AsOf)
}

// NewPipeline builds the fetch to export pipeline described by cfg
func NewPipeline(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	asOf, err := cfg.AsOf()
	if err != nil {
		return nil, apperrors.NewConfigError("invalid as-of date", err)
	}

	positions, err := positionSource(cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	expiries := deps.Expiries
	if expiries == nil {
		if err := cfg.RequireCrate(); err != nil {
			return nil, apperrors.NewConfigError("expiry store unavailable", err)
		}
		conn := datasource.NewConnector(ConnectorCrate, cfg.Databases.Driver, cfg.ActiveProfile().CrateDSN, logger)
		expiries = datasource.NewExpiryStore(conn, logger)
	}

	caller := deps.Caller
	if caller == nil {
		if err := cfg.RequirePricing(); err != nil {
			return nil, apperrors.NewConfigError("pricing service unavailable", err)
		}
		caller = pricing.NewClient(pricing.ClientOptions{
			BaseURL:        cfg.Pricing.BaseURL,
			ResponseFormat: cfg.Pricing.ResponseFormat,
			Timeout:        cfg.Pricing.RequestTimeout,
		}, deps.Metrics, logger)
	}

	normalizer := validation.NewNormalizer(cfg.Pipeline.DefaultRFRate, logger)
	builder := pricing.NewBuilder(pricing.BuilderOptions{
		AsOf:          asOf,
		IVolScheme:    domain.Scheme(cfg.Pricing.IVolScheme),
		PriceScheme:   domain.Scheme(cfg.Pricing.PriceScheme),
		Model:         cfg.Pricing.Model,
		DefaultRFRate: cfg.Pipeline.DefaultRFRate,
	}, normalizer, logger)
	batch := pricing.NewBatch(caller, pricing.BatchOptions{
		CallDelay:   cfg.Pricing.CallDelay,
		Concurrency: cfg.Pricing.Concurrency,
	}, logger)

	paths := cfg.GetPaths()
	exp := exporter.New(paths, logger)
	var overridesWriter PositionsWriter
	if cfg.Pipeline.OverridesXLSX {
		overridesWriter = exp
	}

	registry := NewRegistry()
	steps := []Step{
		NewFetchStage(positions, logger),
		NewNormalizeStage(normalizer, logger),
		NewAlignStage(expiries, cfg.Pipeline.ExpiryPatterns, dataprocessing.NewExpiryAligner(cfg.Pipeline.ExposureSymbols, logger)),
		NewOverridesStage(cfg.Pipeline.Overrides, overridesWriter, paths, logger),
		NewIVolStage(normalizer, builder, batch, logger),
		NewPayloadsStage(builder, logger),
		NewPriceStage(batch),
		NewMergeStage(dataprocessing.NewMerger(cfg.Pipeline.StrictJoinKeys, logger), deps.Metrics),
		NewExportStage(exp, cfg.Pipeline.OutputFile, cfg.Pipeline.OutputXLSX, logger),
	}
	for _, s := range steps {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}

	tracer := NewOperationTracer(deps.Providers, deps.Metrics)
	return &Pipeline{
		Manager: NewManager(registry, tracer, logger),
		AsOf:    asOf,
	}, nil
}

func positionSource(cfg *config.Config, deps Dependencies, logger *slog.Logger) (PositionSource, error) {
	if deps.Positions != nil {
		return deps.Positions, nil
	}

	if cfg.Pipeline.PositionSource == "csv" {
		return FilePositions{
			Path:   cfg.Pipeline.PositionsCSV,
			Filter: datasource.PositionFilter{StrategyIDs: cfg.Pipeline.StrategyIDs},
			Logger: logger,
		}, nil
	}

	if err := cfg.RequireBackOffice(); err != nil {
		return nil, apperrors.NewConfigError("position store unavailable", err)
	}
	conn := datasource.NewConnector(ConnectorBackOffice, cfg.Databases.Driver, cfg.ActiveProfile().BackOfficeDSN, logger)
	return DBPositions{
		Store:       datasource.NewPositionStore(conn, logger),
		StrategyIDs: cfg.Pipeline.StrategyIDs,
	}, nil
}
