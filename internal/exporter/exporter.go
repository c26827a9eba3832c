package exporter

import (
	"log/slog"

	"optpricer/internal/config"
	"optpricer/pkg/contracts/domain"
)

// Exporter writes the pipeline's tables in their fixed layouts
type Exporter struct {
	csv    *CSVWriter
	xlsx   *XLSXWriter
	logger *slog.Logger
}

// New creates an exporter writing under paths
func New(paths *config.Paths, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		csv:    NewCSVWriter(paths, logger),
		xlsx:   NewXLSXWriter(paths, logger),
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// MergedCSV writes the priced table and returns the resolved path
func (e *Exporter) MergedCSV(path string, rows []domain.MergedRow) (string, error) {
	sw, err := e.csv.CreateStreamWriter(path, MergedHeaders, false)
	if err != nil {
		return "", err
	}
	for _, r := range rows {
		if err := sw.WriteRecord(MergedRecord(r)); err != nil {
			sw.Close()
			return "", err
		}
	}
	if err := sw.Close(); err != nil {
		return "", err
	}

	e.logger.Info("results exported", slog.String("file", sw.Path()), slog.Int("rows", len(rows)))
	return sw.Path(), nil
}

// MergedXLSX writes the priced table as a workbook
func (e *Exporter) MergedXLSX(path string, rows []domain.MergedRow) (string, error) {
	records := make([][]any, len(rows))
	for i, r := range rows {
		records[i] = mergedCells(r)
	}
	return e.xlsx.WriteSheet(path, MergedHeaders, records)
}

// PositionsXLSX writes a position table, used for the manual overrides snapshot
func (e *Exporter) PositionsXLSX(path string, rows []domain.PositionRow) (string, error) {
	records := make([][]any, len(rows))
	for i, r := range rows {
		records[i] = positionCells(r)
	}
	return e.xlsx.WriteSheet(path, PositionHeaders, records)
}

// ExpiriesCSV writes the standalone expiry table
func (e *Exporter) ExpiriesCSV(path string, expiries []domain.ExpiryRecord) (string, error) {
	records := make([][]string, len(expiries))
	for i, x := range expiries {
		records[i] = ExpiryRecord(x)
	}
	return e.csv.WriteCSV(path, WriteOptions{Headers: ExpiryHeaders, Records: records})
}

// MappedExpiriesCSV writes the mapping-driven expiry table. The header row is
// written even when there are no records.
func (e *Exporter) MappedExpiriesCSV(path string, expiries []domain.MappedExpiry) (string, error) {
	records := make([][]string, len(expiries))
	for i, x := range expiries {
		records[i] = MappedExpiryRecord(x)
	}
	if len(records) == 0 {
		e.logger.Warn("no expiry data returned, exporting header only", slog.String("file", path))
	}
	return e.csv.WriteCSV(path, WriteOptions{Headers: MappedExpiryHeaders, Records: records})
}

// SettlementsXLSX writes the settlements workbook. With no settlements the
// workbook is empty.
func (e *Exporter) SettlementsXLSX(path string, settlements []domain.Settlement) (string, error) {
	if len(settlements) == 0 {
		e.logger.Warn("no settlements returned, exporting empty workbook", slog.String("file", path))
		return e.xlsx.WriteSheet(path, nil, nil)
	}
	records := make([][]any, len(settlements))
	for i, s := range settlements {
		records[i] = settlementCells(s)
	}
	return e.xlsx.WriteSheet(path, SettlementHeaders, records)
}
