package testutil

import (
	"time"

	"optpricer/pkg/contracts/domain"
)

// MustDate parses a YYYY-MM-DD date in UTC and panics on bad input
func MustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// OptionRow returns a call position that passes every normalization check
func OptionRow(exposure string) domain.PositionRow {
	return domain.PositionRow{
		StrategyID:     "124",
		Exposure:       exposure,
		EndDate:        domain.Date(MustDate("2025-08-01")),
		MarketPrice:    domain.Float(1.25),
		InstrumentType: "Option",
		FutureValue:    domain.Float(100),
		OptionType:     domain.OptionTypeCall,
		Strike:         domain.Float(50),
		RFRate:         domain.Float(0.05),
		OptionExpiry:   domain.Date(MustDate("2025-08-15")),
	}
}

// OptionRows returns one OptionRow per exposure, in order
func OptionRows(exposures ...string) []domain.PositionRow {
	rows := make([]domain.PositionRow, 0, len(exposures))
	for _, e := range exposures {
		rows = append(rows, OptionRow(e))
	}
	return rows
}
