package domain

// Scheme is the option exercise style sent to the pricing API
type Scheme string

const (
	SchemeAmerican Scheme = "American"
	SchemeEuropean Scheme = "European"
)

// VolatilityRequest carries the getIVol positional parameters for one row.
type VolatilityRequest struct {
	Exposure       string  `json:"exposure"`
	AsOfDate       string  `json:"as_of_date"`
	ExpirationDate string  `json:"expiration_date"`
	Strike         float64 `json:"strike"`
	Parity         string  `json:"parity"`
	FutureValue    float64 `json:"future_value"`
	MarketPrice    float64 `json:"market_price"`
	RFRate         float64 `json:"rf_rate"`
	Scheme         Scheme  `json:"scheme"`
	Model          string  `json:"model"`
}

// PricingPayload carries the getPriceVanilla parameters for one row.
// It is built right before the call and never modified.
type PricingPayload struct {
	Exposure       string  `json:"exposure"`
	AsOfDate       string  `json:"as_of_date"`
	ExpirationDate string  `json:"expiration_date"`
	Strike         float64 `json:"strike"`
	Parity         string  `json:"parity"`
	FutureValue    float64 `json:"future_value"`
	IVol           float64 `json:"ivol"`
	RFRate         float64 `json:"rf_rate"`
	Scheme         Scheme  `json:"scheme"`
	Model          string  `json:"model"`
}

// PricingResult is the outcome of one remote call. Exactly one of Value and
// Error is set.
type PricingResult struct {
	Exposure string   `json:"exposure"`
	Value    *float64 `json:"value,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// OK reports whether the call produced a value.
func (r PricingResult) OK() bool {
	return r.Error == "" && r.Value != nil
}

// MergedRow is a position row left-joined with its pricing result.
type MergedRow struct {
	PositionRow
	ComputedValue *float64 `json:"computed_value,omitempty"`
	Error         string   `json:"error,omitempty"`
}
