package domain

import "time"

// SettlementRequest identifies one option contract whose settlement is wanted.
type SettlementRequest struct {
	CrateTicks string     `json:"crate_ticks"`
	YMKey      string     `json:"ym_key"`
	OptionType OptionType `json:"option_type"`
	Strike     string     `json:"strike"`
	Source     string     `json:"source"`
}

// Settlement is a settlement price row from the market data store.
type Settlement struct {
	OptSymbolCode string    `json:"opt_symbol_code"`
	InstrumentKey string    `json:"instrument_key"`
	Source        string    `json:"source"`
	Date          time.Time `json:"date"`
	Field         string    `json:"field"`
	Label         string    `json:"label"`
	Value         float64   `json:"value"`
}
