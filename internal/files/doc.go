// Package files finds the input sheets the pipeline reads.
//
// Position exports, mapping sheets and settlement request sheets may be given
// either as a file or as a directory of dated exports. In the second case the
// most recently modified CSV or XLSX file is used:
//
//	path, err := files.ResolveInput("exports/positions")
//	rows, err := datasource.ReadPositions(path, filter, logger)
package files
