package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatFloat renders v as a path segment. Integral values keep a ".0" suffix
// ("50.0"), the form the service has always received.
func formatFloat(v float64) string {
	s := decimal.NewFromFloat(v).String()
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
