// Package exporter writes pipeline tables to CSV and XLSX files.
//
// CSVWriter and XLSXWriter are the low-level writers. Both resolve relative file
// names under the configured output directory and replace existing files.
// Exporter fixes the column layout of each table the tool produces:
//
//   - the priced result table (position columns plus computed_value and error)
//   - the manual overrides snapshot
//   - the standalone and mapping-driven expiry tables
//   - the settlements workbook
//
// Example usage:
//
//	exp := exporter.New(cfg.GetPaths(), logger)
//	path, err := exp.MergedCSV(cfg.Pipeline.OutputFile, merged)
package exporter
