package exporter

import (
	"encoding/csv"
	"log/slog"
	"os"

	"optpricer/internal/config"
	apperrors "optpricer/internal/errors"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer. Relative file names resolve under paths.
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if paths == nil {
		paths = &config.Paths{OutputDir: "."}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file, replacing any existing file, and returns
// the path written
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) (string, error) {
	sw, err := w.CreateStreamWriter(filePath, options.Headers, options.BOMPrefix)
	if err != nil {
		return "", err
	}

	for i, record := range options.Records {
		if err := sw.WriteRecord(record); err != nil {
			sw.Close()
			return "", apperrors.NewExportError("failed to write record", err).WithContext("record", i)
		}
	}
	if err := sw.Close(); err != nil {
		return "", err
	}

	w.logger.Info("CSV file written",
		slog.String("file", sw.Path()),
		slog.Int("record_count", len(options.Records)))
	return sw.Path(), nil
}

// StreamWriter writes CSV records one at a time
type StreamWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter truncates or creates the file and writes the header row
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string, bom bool) (*StreamWriter, error) {
	fullPath := w.paths.Resolve(filePath)

	w.logger.Debug("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("header_count", len(headers)))

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, apperrors.NewExportError("failed to create "+fullPath, err)
	}

	if bom {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			return nil, apperrors.NewExportError("failed to write BOM", err)
		}
	}

	writer := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, apperrors.NewExportError("failed to write headers", err)
		}
	}

	return &StreamWriter{path: fullPath, file: file, writer: writer}, nil
}

// Path returns the resolved file path
func (s *StreamWriter) Path() string {
	return s.path
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return apperrors.NewExportError("failed to flush "+s.path, err)
	}
	if err := s.file.Close(); err != nil {
		return apperrors.NewExportError("failed to close "+s.path, err)
	}
	return nil
}
