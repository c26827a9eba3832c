package dataprocessing

import (
	"strings"

	"optpricer/pkg/contracts/domain"
)

// OptionSymbolCode builds the settlement instrument key for a contract,
// e.g. "TFO 202508 P25". The strike loses a trailing ".0" so integral strikes
// match the store's keys.
func OptionSymbolCode(req domain.SettlementRequest) string {
	letter := ""
	if t := strings.TrimSpace(string(req.OptionType)); t != "" {
		letter = strings.ToUpper(t[:1])
	}
	return strings.TrimSpace(req.CrateTicks) + " " +
		strings.TrimSpace(req.YMKey) + " " +
		letter + strings.TrimSuffix(strings.TrimSpace(req.Strike), ".0")
}
