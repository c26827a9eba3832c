package domain

import (
	"strings"
	"time"
)

// OptionType is the exercise right of an option position
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// Parity returns the canonical token the pricing API expects ("Call"/"Put").
// Unknown values are capitalised the same way.
func (t OptionType) Parity() string {
	s := strings.ToLower(strings.TrimSpace(string(t)))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// PositionRow is one priced exposure as read from the valuation store.
// Optional values are pointers; a nil pointer is a missing value.
type PositionRow struct {
	StrategyID     string     `json:"strategy_id" db:"strategy_id"`
	Exposure       string     `json:"exposure" db:"exposure" validate:"required"`
	EndDate        *time.Time `json:"end_date,omitempty" db:"end_date"`
	MarketPrice    *float64   `json:"market_price,omitempty" db:"market_price"`
	InstrumentType string     `json:"instrument_type" db:"instrument_type"`
	FutureValue    *float64   `json:"future_value,omitempty" db:"future_value"`
	OptionType     OptionType `json:"option_type" db:"option_type"`
	Strike         *float64   `json:"strike,omitempty" db:"strike"`
	RFRate         *float64   `json:"rf_rate,omitempty" db:"rf_rate"`
	IVol           *float64   `json:"ivol,omitempty" db:"ivol"`

	// Set by expiry alignment
	Symbol       string     `json:"symbol,omitempty"`
	YMKey        int        `json:"ym_key,omitempty"`
	OptionExpiry *time.Time `json:"option_expiry,omitempty"`

	// Set by the volatility lookup
	ComputedIVol *float64 `json:"computed_ivol,omitempty"`
}

// Clone returns a copy of the row that can be modified independently.
func (r PositionRow) Clone() PositionRow {
	c := r
	c.EndDate = copyTime(r.EndDate)
	c.MarketPrice = copyFloat(r.MarketPrice)
	c.FutureValue = copyFloat(r.FutureValue)
	c.Strike = copyFloat(r.Strike)
	c.RFRate = copyFloat(r.RFRate)
	c.IVol = copyFloat(r.IVol)
	c.OptionExpiry = copyTime(r.OptionExpiry)
	c.ComputedIVol = copyFloat(r.ComputedIVol)
	return c
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// EffectiveIVol returns the volatility used for pricing: the computed value
// when present, otherwise the stored one.
func (r PositionRow) EffectiveIVol() *float64 {
	if r.ComputedIVol != nil {
		return r.ComputedIVol
	}
	return r.IVol
}

// CloneRows copies a row slice.
func CloneRows(rows []PositionRow) []PositionRow {
	out := make([]PositionRow, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Date returns a pointer to t.
func Date(t time.Time) *time.Time {
	return &t
}
