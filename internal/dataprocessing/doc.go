// Package dataprocessing holds the in-memory transformations of the pricing
// pipeline: aligning positions with option expiries, applying manual future value
// overrides, and merging pricing results back onto the positions.
//
// # Data Flow
//
//	positions → ExpiryAligner.Align → ApplyOverrides → (pricing) → Merger.Merge → export
//
// Every step returns new rows and never modifies its input.
//
// # Join Keys
//
// Expiry alignment joins on (future symbol, YYYYMM). The symbol comes from the
// configured exposure map; the YYYYMM is the position's end date on one side and
// the first six-digit group of the future key on the other.
//
// Result merging joins on exposure. Duplicate exposures are reported and, when the
// merger is strict, rejected:
//
//	merger := dataprocessing.NewMerger(cfg.Pipeline.StrictJoinKeys, logger)
//	merged, report, err := merger.Merge(ctx, rows, results)
package dataprocessing
