// Package operations runs the valuation pipeline as an ordered list of steps.
//
// A Manager takes the steps of a Registry in dependency order and executes them
// one at a time against a shared OperationState. The state carries the tables
// each step hands to the next (positions, expiries, payloads, results and the
// merged table) along with a RunSummary of row counts.
//
// The pipeline steps are:
//
//	fetch -> normalize -> align -> overrides -> ivol -> payloads -> price -> merge -> export
//
// A step that has nothing to hand on (no positions, no rows left after
// normalization, no valid payloads) stops the run early without an error. Any
// step error ends the run with an *OperationError; the context is checked
// between steps and cancellation is reported as ErrorTypeCancellation.
//
// Per-row failures in the ivol and price steps are never step errors. They are
// carried as PricingResult errors and counted in the summary.
//
// Each step gets its own span from the configured tracer, and step duration and
// output rows are recorded on infrastructure.PipelineMetrics.
//
// NewPipeline builds the standard registry from configuration.
package operations
