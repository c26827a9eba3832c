package operations

// Pipeline step identifiers, in execution order
const (
	StepIDFetch     = "fetch"
	StepIDNormalize = "normalize"
	StepIDAlign     = "align"
	StepIDOverrides = "overrides"
	StepIDIVol      = "ivol"
	StepIDPayloads  = "payloads"
	StepIDPrice     = "price"
	StepIDMerge     = "merge"
	StepIDExport    = "export"
)

// Pipeline step names
const (
	StepNameFetch     = "Fetch Positions"
	StepNameNormalize = "Normalize Rows"
	StepNameAlign     = "Align Option Expiries"
	StepNameOverrides = "Manual Overrides"
	StepNameIVol      = "Volatility Lookup"
	StepNamePayloads  = "Build Payloads"
	StepNamePrice     = "Price Lookup"
	StepNameMerge     = "Merge Results"
	StepNameExport    = "Export Results"
)

// Reasons recorded when a Step ends the run early
const (
	StopNoPositions     = "no positions returned"
	StopNoNormalizedRow = "no rows left after normalization"
	StopNoPayloads      = "no valid pricing payloads"
)
