package exporter

import (
	"optpricer/pkg/contracts/domain"
)

// PositionHeaders are the columns of the position table
var PositionHeaders = []string{
	"strategy_id", "exposure", "end_date", "market_price", "instrument_type",
	"future_value", "option_type", "strike", "rf_rate", "ivol",
	"symbol", "ym_key", "option_expiry", "computed_ivol",
}

// MergedHeaders are the position columns plus the pricing outcome
var MergedHeaders = append(append([]string{}, PositionHeaders...), "computed_value", "error")

// ExpiryHeaders are the columns of the standalone expiry table
var ExpiryHeaders = []string{"future_key", "future_expiry", "option_expiry"}

// MappedExpiryHeaders are the columns of the mapping-driven expiry export
var MappedExpiryHeaders = []string{
	"opt_symbol", "future_key", "future_expiry", "option_expiry",
	"scheme", "tempest_code", "commodity_code", "exchange",
}

// SettlementHeaders are the columns of the settlements workbook
var SettlementHeaders = []string{
	"opt_symbol_code", "instrument_key", "source", "date", "field", "label", "value",
}

func ymKey(v int) string {
	if v == 0 {
		return ""
	}
	return formatInt(int64(v))
}

// PositionRecord renders a position row in PositionHeaders order
func PositionRecord(r domain.PositionRow) []string {
	return []string{
		r.StrategyID,
		r.Exposure,
		formatDatePtr(r.EndDate),
		formatFloatPtr(r.MarketPrice),
		r.InstrumentType,
		formatFloatPtr(r.FutureValue),
		string(r.OptionType),
		formatFloatPtr(r.Strike),
		formatFloatPtr(r.RFRate),
		formatFloatPtr(r.IVol),
		r.Symbol,
		ymKey(r.YMKey),
		formatDatePtr(r.OptionExpiry),
		formatFloatPtr(r.ComputedIVol),
	}
}

// MergedRecord renders a merged row in MergedHeaders order
func MergedRecord(r domain.MergedRow) []string {
	return append(PositionRecord(r.PositionRow), formatFloatPtr(r.ComputedValue), r.Error)
}

// ExpiryRecord renders an expiry in ExpiryHeaders order
func ExpiryRecord(e domain.ExpiryRecord) []string {
	return []string{e.FutureKey, formatDate(e.FutureExpiry), formatDate(e.OptionExpiry)}
}

// MappedExpiryRecord renders a mapped expiry in MappedExpiryHeaders order
func MappedExpiryRecord(m domain.MappedExpiry) []string {
	return []string{
		m.OptSymbol,
		m.FutureKey,
		formatDate(m.FutureExpiry),
		formatDate(m.OptionExpiry),
		m.Scheme,
		m.TempestCode,
		m.CommodityCode,
		m.Exchange,
	}
}

// positionCells renders a position row for a workbook, keeping numbers numeric
func positionCells(r domain.PositionRow) []any {
	return []any{
		r.StrategyID,
		r.Exposure,
		formatDatePtr(r.EndDate),
		floatCell(r.MarketPrice),
		r.InstrumentType,
		floatCell(r.FutureValue),
		string(r.OptionType),
		floatCell(r.Strike),
		floatCell(r.RFRate),
		floatCell(r.IVol),
		r.Symbol,
		intCell(r.YMKey),
		formatDatePtr(r.OptionExpiry),
		floatCell(r.ComputedIVol),
	}
}

func mergedCells(r domain.MergedRow) []any {
	return append(positionCells(r.PositionRow), floatCell(r.ComputedValue), r.Error)
}

func settlementCells(s domain.Settlement) []any {
	return []any{s.OptSymbolCode, s.InstrumentKey, s.Source, formatDate(s.Date), s.Field, s.Label, s.Value}
}

func floatCell(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func intCell(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
