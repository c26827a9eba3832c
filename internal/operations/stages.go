package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"optpricer/internal/config"
	"optpricer/internal/dataprocessing"
	"optpricer/internal/infrastructure"
	"optpricer/internal/pricing"
	"optpricer/internal/validation"
	"optpricer/pkg/contracts/domain"
)

// PositionSource supplies the positions of a run
type PositionSource interface {
	FetchPositions(ctx context.Context, asOf time.Time) ([]domain.PositionRow, error)
}

// ExpirySource supplies option expiries later than asOf (YYYY-MM-DD)
type ExpirySource interface {
	Fetch(ctx context.Context, asOf string, patterns []string) ([]domain.ExpiryRecord, error)
}

// PositionsWriter writes a position table as a workbook
type PositionsWriter interface {
	PositionsXLSX(path string, rows []domain.PositionRow) (string, error)
}

// ResultsWriter writes the merged table
type ResultsWriter interface {
	MergedCSV(path string, rows []domain.MergedRow) (string, error)
	MergedXLSX(path string, rows []domain.MergedRow) (string, error)
}

// FetchStage loads the positions to value
type FetchStage struct {
	BaseStage
	source PositionSource
	logger *slog.Logger
}

// NewFetchStage creates the fetch Step
func NewFetchStage(source PositionSource, logger *slog.Logger) *FetchStage {
	return &FetchStage{
		BaseStage: NewBaseStage(StepIDFetch, StepNameFetch, nil),
		source:    source,
		logger:    infrastructure.WithComponent(logger, "fetch_step"),
	}
}

// Validate checks a source is configured
func (s *FetchStage) Validate(state *OperationState) error {
	if s.source == nil {
		return fmt.Errorf("no position source configured")
	}
	return nil
}

// Execute runs the fetch Step
func (s *FetchStage) Execute(ctx context.Context, state *OperationState) error {
	rows, err := s.source.FetchPositions(ctx, state.AsOf)
	if err != nil {
		return err
	}

	state.Rows = rows
	state.Summary.InitialRows = len(rows)
	state.RecordRows(s.ID(), len(rows), "positions loaded")

	if len(rows) == 0 {
		s.logger.WarnContext(ctx, "no positions to value",
			slog.String("as_of_date", state.AsOf.Format(config.DateLayout)))
		state.Stop(s.ID(), StopNoPositions)
	}
	return nil
}

// NormalizeStage drops unusable rows and defaults rf_rate
type NormalizeStage struct {
	BaseStage
	normalizer *validation.Normalizer
	logger     *slog.Logger
}

// NewNormalizeStage creates the normalize Step
func NewNormalizeStage(normalizer *validation.Normalizer, logger *slog.Logger) *NormalizeStage {
	return &NormalizeStage{
		BaseStage:  NewBaseStage(StepIDNormalize, StepNameNormalize, []string{StepIDFetch}),
		normalizer: normalizer,
		logger:     infrastructure.WithComponent(logger, "normalize_step"),
	}
}

// Execute runs the normalize Step
func (s *NormalizeStage) Execute(ctx context.Context, state *OperationState) error {
	rows, report := s.normalizer.Normalize(ctx, state.Rows)

	state.Rows = rows
	state.Summary.NormalizedRows = report.Output
	state.RecordRows(s.ID(), report.Output, fmt.Sprintf("%d rows dropped", report.MissingFutureValue))

	if len(rows) == 0 {
		s.logger.WarnContext(ctx, "every row was dropped during normalization",
			slog.Int("input", report.Input))
		state.Stop(s.ID(), StopNoNormalizedRow)
	}
	return nil
}

// AlignStage fetches option expiries and attaches them to the rows
type AlignStage struct {
	BaseStage
	source   ExpirySource
	patterns []string
	aligner  *dataprocessing.ExpiryAligner
}

// NewAlignStage creates the align Step
func NewAlignStage(source ExpirySource, patterns []string, aligner *dataprocessing.ExpiryAligner) *AlignStage {
	return &AlignStage{
		BaseStage: NewBaseStage(StepIDAlign, StepNameAlign, []string{StepIDNormalize}),
		source:    source,
		patterns:  patterns,
		aligner:   aligner,
	}
}

// Validate checks an expiry source is configured
func (s *AlignStage) Validate(state *OperationState) error {
	if s.source == nil {
		return fmt.Errorf("no expiry source configured")
	}
	return nil
}

// Execute runs the align Step
func (s *AlignStage) Execute(ctx context.Context, state *OperationState) error {
	expiries, err := s.source.Fetch(ctx, state.AsOf.Format(config.DateLayout), s.patterns)
	if err != nil {
		return err
	}
	state.Expiries = expiries

	rows, report := s.aligner.Align(ctx, state.Rows, expiries)
	state.Rows = rows
	state.Summary.AlignedRows = report.Output
	state.RecordRows(s.ID(), report.Output, fmt.Sprintf("%d matched, %d unmatched", report.Matched, report.Unmatched))
	return nil
}

// OverridesStage replaces future values with manual entries
type OverridesStage struct {
	BaseStage
	overrides map[string]float64
	writer    PositionsWriter
	paths     *config.Paths
	now       func() time.Time
	logger    *slog.Logger
}

// NewOverridesStage creates the overrides Step. With a nil writer the
// overridden table is not exported.
func NewOverridesStage(overrides map[string]float64, writer PositionsWriter, paths *config.Paths, logger *slog.Logger) *OverridesStage {
	return &OverridesStage{
		BaseStage: NewBaseStage(StepIDOverrides, StepNameOverrides, []string{StepIDAlign}),
		overrides: overrides,
		writer:    writer,
		paths:     paths,
		now:       time.Now,
		logger:    infrastructure.WithComponent(logger, "overrides_step"),
	}
}

// Execute runs the overrides Step
func (s *OverridesStage) Execute(ctx context.Context, state *OperationState) error {
	if len(s.overrides) == 0 {
		state.RecordRows(s.ID(), len(state.Rows), "no overrides configured")
		return nil
	}

	rows, report := dataprocessing.ApplyOverrides(ctx, state.Rows, s.overrides, s.logger)
	state.Rows = rows
	state.RecordRows(s.ID(), len(rows), fmt.Sprintf("%d rows overridden", report.RowsChanged))

	if s.writer == nil || s.paths == nil {
		return nil
	}
	path, err := s.writer.PositionsXLSX(s.paths.ManualEntriesPath(s.now()), rows)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "manual entries exported", slog.String("file", path))
	return nil
}

// IVolStage computes implied volatilities for every eligible row
type IVolStage struct {
	BaseStage
	normalizer *validation.Normalizer
	builder    *pricing.Builder
	batch      *pricing.Batch
	logger     *slog.Logger
}

// NewIVolStage creates the ivol Step
func NewIVolStage(normalizer *validation.Normalizer, builder *pricing.Builder, batch *pricing.Batch, logger *slog.Logger) *IVolStage {
	return &IVolStage{
		BaseStage:  NewBaseStage(StepIDIVol, StepNameIVol, []string{StepIDOverrides}),
		normalizer: normalizer,
		builder:    builder,
		batch:      batch,
		logger:     infrastructure.WithComponent(logger, "ivol_step"),
	}
}

// Execute runs the ivol Step. Row failures leave computed_ivol empty.
func (s *IVolStage) Execute(ctx context.Context, state *OperationState) error {
	rows := domain.CloneRows(state.Rows)
	eligible, _ := s.normalizer.ForVolatility(ctx, rows)

	reqs := make([]domain.VolatilityRequest, 0, len(eligible))
	index := make([]int, 0, len(eligible))
	for _, i := range eligible {
		req, err := s.builder.VolatilityRequest(rows[i])
		if err != nil {
			s.logger.WarnContext(ctx, "failed to build volatility request",
				slog.String("exposure", rows[i].Exposure),
				slog.String("error", err.Error()))
			continue
		}
		reqs = append(reqs, req)
		index = append(index, i)
	}

	results, err := s.batch.Volatilities(ctx, reqs)
	for k, res := range results {
		if res.OK() {
			rows[index[k]].ComputedIVol = domain.Float(*res.Value)
		} else {
			state.Summary.IVolFailures++
		}
	}

	state.Rows = rows
	state.IVolResults = results
	state.Summary.IVolRequests = len(reqs)
	state.RecordRows(s.ID(), len(reqs)-state.Summary.IVolFailures, fmt.Sprintf("%d lookups failed", state.Summary.IVolFailures))
	return err
}

// PayloadsStage builds one pricing payload per valid row
type PayloadsStage struct {
	BaseStage
	builder *pricing.Builder
	logger  *slog.Logger
}

// NewPayloadsStage creates the payloads Step
func NewPayloadsStage(builder *pricing.Builder, logger *slog.Logger) *PayloadsStage {
	return &PayloadsStage{
		BaseStage: NewBaseStage(StepIDPayloads, StepNamePayloads, []string{StepIDIVol}),
		builder:   builder,
		logger:    infrastructure.WithComponent(logger, "payloads_step"),
	}
}

// Execute runs the payloads Step
func (s *PayloadsStage) Execute(ctx context.Context, state *OperationState) error {
	payloads, rejected := s.builder.Payloads(ctx, state.Rows)

	state.Payloads = payloads
	state.Summary.Payloads = len(payloads)
	state.RecordRows(s.ID(), len(payloads), fmt.Sprintf("%d rows rejected", len(rejected)))

	if len(payloads) == 0 {
		s.logger.WarnContext(ctx, "no valid pricing payloads", slog.Int("rows", len(state.Rows)))
		state.Stop(s.ID(), StopNoPayloads)
	}
	return nil
}

// PriceStage calls getPriceVanilla for every payload
type PriceStage struct {
	BaseStage
	batch *pricing.Batch
}

// NewPriceStage creates the price Step
func NewPriceStage(batch *pricing.Batch) *PriceStage {
	return &PriceStage{
		BaseStage: NewBaseStage(StepIDPrice, StepNamePrice, []string{StepIDPayloads}),
		batch:     batch,
	}
}

// Execute runs the price Step. Row failures become error results.
func (s *PriceStage) Execute(ctx context.Context, state *OperationState) error {
	results, err := s.batch.Prices(ctx, state.Payloads)

	state.PriceResults = results
	for _, r := range results {
		if r.OK() {
			state.Summary.PriceSuccesses++
		} else {
			state.Summary.PriceFailures++
		}
	}
	state.RecordRows(s.ID(), state.Summary.PriceSuccesses, fmt.Sprintf("%d calls failed", state.Summary.PriceFailures))
	return err
}

// MergeStage joins pricing results back onto the rows
type MergeStage struct {
	BaseStage
	merger  *dataprocessing.Merger
	metrics *infrastructure.PipelineMetrics
}

// NewMergeStage creates the merge Step. metrics may be nil.
func NewMergeStage(merger *dataprocessing.Merger, metrics *infrastructure.PipelineMetrics) *MergeStage {
	return &MergeStage{
		BaseStage: NewBaseStage(StepIDMerge, StepNameMerge, []string{StepIDPrice}),
		merger:    merger,
		metrics:   metrics,
	}
}

// Execute runs the merge Step
func (s *MergeStage) Execute(ctx context.Context, state *OperationState) error {
	merged, report, err := s.merger.Merge(ctx, state.Rows, state.PriceResults)

	state.Summary.DuplicateKeys = len(report.DuplicateKeys)
	s.metrics.RecordDuplicateKeys(ctx, len(report.DuplicateKeys))
	if err != nil {
		return err
	}

	state.Merged = merged
	state.Summary.MergedRows = len(merged)
	state.RecordRows(s.ID(), len(merged), fmt.Sprintf("%d priced, %d failed", report.Priced, report.Failed))
	return nil
}

// ExportStage writes the merged table
type ExportStage struct {
	BaseStage
	writer ResultsWriter
	path   string
	xlsx   bool
	logger *slog.Logger
}

// NewExportStage creates the export Step. With xlsx set a workbook with the
// same base name is written next to the CSV.
func NewExportStage(writer ResultsWriter, path string, xlsx bool, logger *slog.Logger) *ExportStage {
	return &ExportStage{
		BaseStage: NewBaseStage(StepIDExport, StepNameExport, []string{StepIDMerge}),
		writer:    writer,
		path:      path,
		xlsx:      xlsx,
		logger:    infrastructure.WithComponent(logger, "export_step"),
	}
}

// Validate checks an output file is configured
func (s *ExportStage) Validate(state *OperationState) error {
	if s.writer == nil || strings.TrimSpace(s.path) == "" {
		return fmt.Errorf("no output file configured")
	}
	return nil
}

// Execute runs the export Step
func (s *ExportStage) Execute(ctx context.Context, state *OperationState) error {
	path, err := s.writer.MergedCSV(s.path, state.Merged)
	if err != nil {
		return err
	}
	state.Summary.OutputFile = path
	state.RecordRows(s.ID(), len(state.Merged), path)

	if !s.xlsx {
		return nil
	}
	xlsxPath, err := s.writer.MergedXLSX(strings.TrimSuffix(s.path, filepath.Ext(s.path))+".xlsx", state.Merged)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "results workbook exported", slog.String("file", xlsxPath))
	return nil
}
