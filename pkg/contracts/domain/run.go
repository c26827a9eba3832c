package domain

// RunSummary reports the row counts of one pipeline run.
type RunSummary struct {
	RunID          string `json:"run_id"`
	InitialRows    int    `json:"initial_rows"`
	NormalizedRows int    `json:"normalized_rows"`
	AlignedRows    int    `json:"aligned_rows"`
	IVolRequests   int    `json:"ivol_requests"`
	IVolFailures   int    `json:"ivol_failures"`
	Payloads       int    `json:"payloads"`
	PriceSuccesses int    `json:"price_successes"`
	PriceFailures  int    `json:"price_failures"`
	MergedRows     int    `json:"merged_rows"`
	DuplicateKeys  int    `json:"duplicate_keys"`
	OutputFile     string `json:"output_file,omitempty"`
	StoppedAt      string `json:"stopped_at,omitempty"`
	StoppedBecause string `json:"stopped_because,omitempty"`
}
