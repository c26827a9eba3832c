package domain

import "time"

// ExpiryRecord ties an option expiry to its underlying future.
type ExpiryRecord struct {
	FutureKey    string    `json:"future_key" db:"future_key"`
	FutureExpiry time.Time `json:"future_expiry" db:"future_expiry"`
	OptionExpiry time.Time `json:"option_expiry" db:"option_expiry"`
}

// MappingRow is one line of the symbol/exchange mapping sheet.
type MappingRow struct {
	OptSymbol     string `json:"opt_symbol" csv:"opt_symbol"`
	Exchange      string `json:"exchange" csv:"exchange"`
	Scheme        string `json:"scheme" csv:"scheme"`
	TempestCode   string `json:"tempest_code" csv:"tempest_code"`
	CommodityCode string `json:"commodity_code" csv:"commodity_code"`
}

// MappedExpiry is an expiry record annotated with its mapping row.
type MappedExpiry struct {
	ExpiryRecord
	MappingRow
}
