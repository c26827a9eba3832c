package datasource

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "optpricer/internal/errors"
	"optpricer/internal/validation"
)

// headerScanRows is how far down a worksheet the header row may sit
const headerScanRows = 10

// table is a header-addressed view over CSV or worksheet rows
type table struct {
	columns map[string]int
	rows    [][]string
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

func newTable(header []string, rows [][]string) *table {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, dup := cols[name]; !dup && name != "" {
			cols[name] = i
		}
	}
	return &table{columns: cols, rows: rows}
}

func (t *table) has(col string) bool {
	_, ok := t.columns[col]
	return ok
}

// get returns the trimmed cell of col, or "" when the column or cell is absent
func (t *table) get(row []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) missing(required []string) []string {
	var out []string
	for _, col := range required {
		if !t.has(col) {
			out = append(out, col)
		}
	}
	return out
}

// readTable loads a .csv or .xlsx file and checks that every required column exists
func readTable(path string, required []string, logger *slog.Logger) (*table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path, required, logger)
	default:
		return readCSV(path, required, logger)
	}
}

func readCSV(path string, required []string, logger *slog.Logger) (*table, error) {
	if err := validation.NewFileValidator(logger).ValidateCSVFile(path, required); err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open "+path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read header of "+path, err)
	}

	var rows [][]string
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("%s line %d", path, line), err)
		}
		rows = append(rows, rec)
	}

	logger.Debug("CSV file read", slog.String("file", path), slog.Int("rows", len(rows)))
	return newTable(header, rows), nil
}

// readWorkbook finds the first sheet whose header row, within the first few rows,
// has every required column
func readWorkbook(path string, required []string, logger *slog.Logger) (*table, error) {
	if err := validation.NewFileValidator(logger).ValidateFile(path); err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook "+path, err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Debug("skipping unreadable sheet", slog.String("sheet", sheet), slog.String("error", err.Error()))
			continue
		}
		for i := 0; i < len(rows) && i < headerScanRows; i++ {
			t := newTable(rows[i], rows[i+1:])
			if len(t.missing(required)) == 0 {
				logger.Debug("worksheet read",
					slog.String("file", path),
					slog.String("sheet", sheet),
					slog.Int("header_row", i+1),
					slog.Int("rows", len(t.rows)))
				return t, nil
			}
		}
	}

	return nil, apperrors.NewAppValidationError(
		fmt.Sprintf("no sheet in %s has columns: %s", path, strings.Join(required, ", ")))
}
