package config

import "time"

// Application constants
const (
	AppName = "optpricer"

	// EnvPrefix namespaces every environment variable read by Load
	EnvPrefix = "OPTPRICER"

	EnvDev  = "DEV"
	EnvProd = "PROD"

	// DefaultDriver is the database/sql driver registered by pgx's stdlib package
	DefaultDriver = "pgx"

	DefaultRFRate    = 0.0434
	DefaultCallDelay = 100 * time.Millisecond

	DefaultOutputFile = "option_price_results.csv"
)

// Date and file naming layouts
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "20060102_150405"

	ManualEntriesPattern  = "manual_entries_output_%s.xlsx"
	ExpiryDataPattern     = "expiry_data_output_%s.csv"
	SettlementsPattern    = "settlements_output_%s.xlsx"
	ExpiriesExportPattern = "expiry_dates_%s.csv"
)

// DefaultStrategyIDs returns the strategy allow-list used by the positions query
func DefaultStrategyIDs() []string {
	return []string{
		"124", "143", "160", "162", "5189", "734", "735",
		"774",
		"LN-NG-EB",
		"4809", "525", "694", "739", "740",
		"634", "635", "636", "637", "741",
		"343", "345", "348", "349", "4908", "4909", "742", "743", "LN-NG-GS",
		"238",
		"5653", "5654", "5655", "647", "648",
		"231", "232", "239", "284", "4275", "744",
		"387", "388", "389", "390", "413", "414", "751", "752",
		"5192", "5193", "5196", "5685", "749", "750",
		"1504", "185", "187", "289", "5686", "753", "LN-NG-PG Cross Commodity-PG",
		"791", "792",
		"5421", "5422", "5423", "5426", "5427", "5428", "5429",
		"175",
		"681", "682", "683",
		"222", "224", "280", "291", "404", "4283", "LN-NG-VG",
	}
}

// DefaultExpiryPatterns returns the instrument_key LIKE prefixes for option expiries
func DefaultExpiryPatterns() []string {
	return []string{
		"B ______ P%",
		"TFO ______ P%",
		"LO ______ P%",
		"CB5 ______ P%",
		"ON ______ P%",
		"EUA ______ P%",
	}
}

// DefaultExposureSymbols maps position exposures to future key symbols
func DefaultExposureSymbols() map[string]string {
	return map[string]string{
		"TTF Curve":         "TTF",
		"IPEBRT25Z":         "B",
		"ICEEUA25Z":         "EUA",
		"NYMWTI26F":         "CL",
		"ICEV25CCA25Z":      "CB5",
		"NG-HenryHub-EXCH":  "NG",
		"EUA Monthly Curve": "EUA",
	}
}
