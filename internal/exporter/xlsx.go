package exporter

import (
	"log/slog"

	"github.com/xuri/excelize/v2"

	"optpricer/internal/config"
	apperrors "optpricer/internal/errors"
)

// DefaultSheet is the worksheet every workbook is written to
const DefaultSheet = "Sheet1"

// XLSXWriter writes single-sheet workbooks
type XLSXWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewXLSXWriter creates a workbook writer. Relative file names resolve under paths.
func NewXLSXWriter(paths *config.Paths, logger *slog.Logger) *XLSXWriter {
	if paths == nil {
		paths = &config.Paths{OutputDir: "."}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{paths: paths, logger: logger.With(slog.String("component", "xlsx_writer"))}
}

// WriteSheet replaces filePath with a workbook holding headers and records.
// Cells keep their Go types so numbers stay numeric; a nil cell is left empty.
// With no headers and no records an empty workbook is written.
func (w *XLSXWriter) WriteSheet(filePath string, headers []string, records [][]any) (string, error) {
	fullPath := w.paths.Resolve(filePath)

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(DefaultSheet)
	if err != nil {
		return "", apperrors.NewExportError("failed to create sheet writer", err)
	}

	row := 1
	if len(headers) > 0 {
		cells := make([]any, len(headers))
		for i, h := range headers {
			cells[i] = h
		}
		if err := setRow(sw, row, cells); err != nil {
			return "", err
		}
		row++
	}
	for _, rec := range records {
		if err := setRow(sw, row, rec); err != nil {
			return "", err
		}
		row++
	}

	if err := sw.Flush(); err != nil {
		return "", apperrors.NewExportError("failed to flush sheet", err)
	}
	if err := f.SaveAs(fullPath); err != nil {
		return "", apperrors.NewExportError("failed to save "+fullPath, err)
	}

	w.logger.Info("Workbook written",
		slog.String("file", fullPath),
		slog.Int("record_count", len(records)))
	return fullPath, nil
}

func setRow(sw *excelize.StreamWriter, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return apperrors.NewExportError("invalid row", err)
	}
	if err := sw.SetRow(cell, cells); err != nil {
		return apperrors.NewExportError("failed to write row", err).WithContext("row", row)
	}
	return nil
}
