package operations_test

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"optpricer/internal/config"
	apperrors "optpricer/internal/errors"
	"optpricer/internal/infrastructure"
	"optpricer/internal/operations"
	"optpricer/internal/shared/testutil"
	"optpricer/pkg/contracts/domain"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Pricing.BaseURL = "http://pricing.invalid"
	cfg.Pricing.CallDelay = 0
	cfg.Pipeline.AsOfDate = "2025-07-01"
	cfg.Pipeline.ExposureSymbols = map[string]string{"E1": "TFO", "E2": "TFO", "E3": "TFO"}
	cfg.Pipeline.Overrides = map[string]float64{}
	cfg.Paths.OutputDir = t.TempDir()
	return cfg
}

func augustExpiries() *stubExpiries {
	return &stubExpiries{records: []domain.ExpiryRecord{{
		FutureKey:    "TFO 202508 F",
		FutureExpiry: testutil.MustDate("2025-08-28"),
		OptionExpiry: testutil.MustDate("2025-08-15"),
	}}}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %s not found in %v", name, header)
	return -1
}

// One call row with a zero rate, priced through the HTTP client.
func TestPipeline_SingleRowEndToEnd(t *testing.T) {
	var (
		mu        sync.Mutex
		pricePath string
		query     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/getIVol/"):
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("0.3"))
		case strings.HasPrefix(r.URL.Path, "/getPriceVanilla/"):
			mu.Lock()
			pricePath, query = r.URL.Path, r.URL.RawQuery
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"price": 42.5, "currency": "USD"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Pricing.BaseURL = srv.URL

	row := testutil.OptionRow("E1")
	row.RFRate = domain.Float(0)
	expiries := augustExpiries()

	logger, logs := testutil.NewTestLogger(t)
	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: []domain.PositionRow{row}},
		Expiries:  expiries,
	}, logger)
	require.NoError(t, err)

	summary, state, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-07-01", expiries.asOf)
	assert.Equal(t, "/getPriceVanilla/2025-07-01/2025-08-15/50.0/Call/100.0/0.3/0.0434", pricePath)
	assert.Contains(t, query, "scheme=American")
	assert.Contains(t, query, "model=BSM")

	require.Len(t, state.Payloads, 1)
	assert.InDelta(t, 0.0434, state.Payloads[0].RFRate, 1e-12)
	assert.Equal(t, "Call", state.Payloads[0].Parity)

	require.Len(t, state.Merged, 1)
	require.NotNil(t, state.Merged[0].ComputedValue)
	assert.InDelta(t, 42.5, *state.Merged[0].ComputedValue, 1e-12)
	assert.InDelta(t, 0.3, *state.Merged[0].ComputedIVol, 1e-12)

	assert.Equal(t, domain.RunSummary{
		RunID:          summary.RunID,
		InitialRows:    1,
		NormalizedRows: 1,
		AlignedRows:    1,
		IVolRequests:   1,
		Payloads:       1,
		PriceSuccesses: 1,
		MergedRows:     1,
		OutputFile:     filepath.Join(cfg.Paths.OutputDir, config.DefaultOutputFile),
	}, *summary)

	records := readCSV(t, summary.OutputFile)
	require.Len(t, records, 2)
	assert.Equal(t, "42.5", records[1][column(t, records[0], "computed_value")])
	assert.Equal(t, "0.3", records[1][column(t, records[0], "computed_ivol")])
	assert.Equal(t, "0.0434", records[1][column(t, records[0], "rf_rate")])

	testutil.AssertLogContains(t, logs, slog.LevelInfo, "pipeline run summary")
}

func TestPipeline_SecondPriceCallFails(t *testing.T) {
	cfg := testConfig(t)
	caller := &stubCaller{
		ivol:  map[string]float64{"E1": 0.3, "E2": 0.31, "E3": 0.32},
		price: map[string]float64{"E1": 10, "E3": 30},
	}

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: testutil.OptionRows("E1", "E2", "E3")},
		Expiries:  augustExpiries(),
		Caller:    caller,
	}, nil)
	require.NoError(t, err)

	summary, state, err := p.Run(context.Background())
	require.NoError(t, err, "row failures never fail the run")

	require.Len(t, state.PriceResults, 3)
	assert.True(t, state.PriceResults[0].OK())
	assert.False(t, state.PriceResults[1].OK())
	assert.Equal(t, "E2", state.PriceResults[1].Exposure)
	assert.Contains(t, state.PriceResults[1].Error, "500")
	assert.True(t, state.PriceResults[2].OK())

	require.Len(t, state.Merged, 3)
	assert.InDelta(t, 10.0, *state.Merged[0].ComputedValue, 1e-12)
	assert.Nil(t, state.Merged[1].ComputedValue)
	assert.NotEmpty(t, state.Merged[1].Error)
	assert.InDelta(t, 30.0, *state.Merged[2].ComputedValue, 1e-12)

	assert.Equal(t, 2, summary.PriceSuccesses)
	assert.Equal(t, 1, summary.PriceFailures)
	assert.Equal(t, 3, summary.MergedRows)

	// The payload carries the computed volatility
	require.Len(t, caller.payloads, 3)
	assert.InDelta(t, 0.31, caller.payloads[1].IVol, 1e-12)
}

func TestPipeline_MissingFutureValueNeverPriced(t *testing.T) {
	cfg := testConfig(t)
	rows := testutil.OptionRows("E1", "E2")
	rows[1].FutureValue = nil
	caller := &stubCaller{ivol: map[string]float64{"E1": 0.3, "E2": 0.3}, price: map[string]float64{"E1": 1, "E2": 2}}

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: rows},
		Expiries:  augustExpiries(),
		Caller:    caller,
	}, nil)
	require.NoError(t, err)

	summary, state, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.InitialRows)
	assert.Equal(t, 1, summary.NormalizedRows)
	require.Len(t, caller.payloads, 1)
	assert.Equal(t, "E1", caller.payloads[0].Exposure)
	require.Len(t, caller.ivolReqs, 1)
	for _, m := range state.Merged {
		assert.NotEqual(t, "E2", m.Exposure)
	}
}

func TestPipeline_StopsWhenNoPositions(t *testing.T) {
	cfg := testConfig(t)
	caller := &stubCaller{}

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{},
		Expiries:  augustExpiries(),
		Caller:    caller,
	}, nil)
	require.NoError(t, err)

	summary, state, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, operations.StepIDFetch, summary.StoppedAt)
	assert.Equal(t, operations.StopNoPositions, summary.StoppedBecause)
	assert.Empty(t, caller.payloads)
	assert.Empty(t, summary.OutputFile)
	status, _ := state.GetStage(operations.StepIDExport).Snapshot()
	assert.Equal(t, operations.StepStatusSkipped, status)
}

func TestPipeline_StopsWithoutPayloads(t *testing.T) {
	cfg := testConfig(t)
	// No symbol mapping: nothing aligns, so no row has an option expiry
	cfg.Pipeline.ExposureSymbols = map[string]string{}
	rows := testutil.OptionRows("E1", "E2")
	for i := range rows {
		rows[i].IVol = domain.Float(0.2)
	}
	caller := &stubCaller{}

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: rows},
		Expiries:  augustExpiries(),
		Caller:    caller,
	}, nil)
	require.NoError(t, err)

	summary, state, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, operations.StepIDPayloads, summary.StoppedAt)
	assert.Equal(t, 0, summary.Payloads)
	assert.Empty(t, caller.ivolReqs)
	assert.Len(t, state.Rows, 2, "partial result keeps the aligned rows")
}

func TestPipeline_ExpiryQueryFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	storeErr := apperrors.NewStorageError("expiry query failed", errors.New("relation does not exist"))

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: testutil.OptionRows("E1")},
		Expiries:  &stubExpiries{err: storeErr},
		Caller:    &stubCaller{},
	}, nil)
	require.NoError(t, err)

	_, _, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeExecution, operations.GetErrorType(err))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestPipeline_StrictJoinKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.StrictJoinKeys = true
	caller := &stubCaller{ivol: map[string]float64{"E1": 0.3}, price: map[string]float64{"E1": 1}}

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: testutil.OptionRows("E1", "E1")},
		Expiries:  augustExpiries(),
		Caller:    caller,
	}, nil)
	require.NoError(t, err)

	summary, _, err := p.Run(context.Background())
	require.Error(t, err)
	var opErr *operations.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, operations.StepIDMerge, opErr.Step)
	assert.Equal(t, 1, summary.DuplicateKeys)
	assert.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, config.DefaultOutputFile))
}

func TestPipeline_OverridesExportWorkbook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.Overrides = map[string]float64{"E2": 120}
	cfg.Pipeline.OutputXLSX = true
	caller := &stubCaller{
		ivol:  map[string]float64{"E1": 0.3, "E2": 0.3},
		price: map[string]float64{"E1": 1, "E2": 2},
	}

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: testutil.OptionRows("E1", "E2")},
		Expiries:  augustExpiries(),
		Caller:    caller,
	}, nil)
	require.NoError(t, err)

	_, state, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 120.0, caller.payloads[1].FutureValue, 1e-12)
	assert.InDelta(t, 100.0, caller.payloads[0].FutureValue, 1e-12)
	assert.InDelta(t, 120.0, *state.Merged[1].FutureValue, 1e-12)

	manual, err := filepath.Glob(filepath.Join(cfg.Paths.OutputDir, "manual_entries_output_*.xlsx"))
	require.NoError(t, err)
	require.Len(t, manual, 1)

	f, err := excelize.OpenFile(filepath.Join(cfg.Paths.OutputDir, "option_price_results.xlsx"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestPipeline_CancelledDuringPricing(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	caller := &stubCaller{
		ivol:    map[string]float64{"E1": 0.3, "E2": 0.3, "E3": 0.3},
		price:   map[string]float64{"E1": 1, "E2": 2, "E3": 3},
		onPrice: func(context.Context) { cancel() },
	}

	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: testutil.OptionRows("E1", "E2", "E3")},
		Expiries:  augustExpiries(),
		Caller:    caller,
	}, nil)
	require.NoError(t, err)

	_, state, err := p.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, operations.ErrorTypeCancellation, operations.GetErrorType(err))
	assert.Equal(t, operations.OperationStatusCancelled, state.Status)
	assert.Len(t, caller.payloads, 1)
	assert.Len(t, state.PriceResults, 3)
}

func TestPipeline_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := infrastructure.NewPipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	cfg := testConfig(t)
	p, err := operations.NewPipeline(cfg, operations.Dependencies{
		Positions: stubPositions{rows: testutil.OptionRows("E1")},
		Expiries:  augustExpiries(),
		Caller:    &stubCaller{ivol: map[string]float64{"E1": 0.3}, price: map[string]float64{"E1": 1}},
		Metrics:   metrics,
	}, nil)
	require.NoError(t, err)

	_, _, err = p.Run(context.Background())
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["pipeline_step_duration_seconds"])
	assert.True(t, names["pipeline_rows_total"])
	assert.True(t, names["pipeline_runs_total"])
}

func TestNewPipeline_RequiresConfiguredSystems(t *testing.T) {
	t.Run("pricing base url", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Pricing.BaseURL = ""
		_, err := operations.NewPipeline(cfg, operations.Dependencies{
			Positions: stubPositions{},
			Expiries:  augustExpiries(),
		}, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	})

	t.Run("back office dsn", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Databases.Prod.BackOfficeDSN = ""
		_, err := operations.NewPipeline(cfg, operations.Dependencies{
			Expiries: augustExpiries(),
			Caller:   &stubCaller{},
		}, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	})

	t.Run("csv source needs no database", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Pipeline.PositionSource = "csv"
		cfg.Pipeline.PositionsCSV = filepath.Join(t.TempDir(), "positions.csv")
		_, err := operations.NewPipeline(cfg, operations.Dependencies{
			Expiries: augustExpiries(),
			Caller:   &stubCaller{},
		}, nil)
		require.NoError(t, err)
	})
}
