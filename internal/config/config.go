package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	// Environment selects the database profile. Read from MOSAIC_ENV when the
	// prefixed variable is unset.
	Environment string          `yaml:"environment" envconfig:"MOSAIC_ENV" validate:"oneof=DEV PROD"`
	Databases   DatabasesConfig `yaml:"databases" envconfig:"DATABASES"`
	Pricing     PricingConfig   `yaml:"pricing" envconfig:"PRICING"`
	Pipeline    PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Logging     LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry   TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Paths       PathsConfig     `yaml:"paths" envconfig:"PATHS"`
}

// DatabaseProfile holds the connection strings for one environment
type DatabaseProfile struct {
	BackOfficeDSN string `yaml:"back_office_dsn" envconfig:"BACK_OFFICE_DSN"`
	CrateDSN      string `yaml:"crate_dsn" envconfig:"CRATE_DSN"`
}

// DatabasesConfig contains both environment profiles and the database/sql driver name
type DatabasesConfig struct {
	Driver string          `yaml:"driver" envconfig:"DRIVER" validate:"required"`
	Dev    DatabaseProfile `yaml:"dev" envconfig:"DEV"`
	Prod   DatabaseProfile `yaml:"prod" envconfig:"PROD"`
}

// PricingConfig contains pricing service configuration
type PricingConfig struct {
	BaseURL        string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	IVolScheme     string        `yaml:"ivol_scheme" envconfig:"IVOL_SCHEME" validate:"oneof=American European"`
	PriceScheme    string        `yaml:"price_scheme" envconfig:"PRICE_SCHEME" validate:"oneof=American European"`
	Model          string        `yaml:"model" envconfig:"MODEL" validate:"required"`
	ResponseFormat string        `yaml:"response_format" envconfig:"RESPONSE_FORMAT" validate:"oneof=auto json plain"`
	CallDelay      time.Duration `yaml:"call_delay" envconfig:"CALL_DELAY" validate:"gte=0"`
	Concurrency    int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=1,lte=64"`
	// RequestTimeout of zero leaves individual requests unbounded.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gte=0"`
}

// PipelineConfig contains run-level settings for the valuation pipeline
type PipelineConfig struct {
	// AsOfDate is YYYY-MM-DD; empty means today.
	AsOfDate        string             `yaml:"as_of_date" envconfig:"AS_OF_DATE" validate:"omitempty,datetime=2006-01-02"`
	PositionSource  string             `yaml:"position_source" envconfig:"POSITION_SOURCE" validate:"oneof=db csv"`
	PositionsCSV    string             `yaml:"positions_csv" envconfig:"POSITIONS_CSV" validate:"required_if=PositionSource csv"`
	StrategyIDs     []string           `yaml:"strategy_ids" envconfig:"STRATEGY_IDS" validate:"required_if=PositionSource db"`
	ExpiryPatterns  []string           `yaml:"expiry_patterns" envconfig:"EXPIRY_PATTERNS"`
	ExposureSymbols map[string]string  `yaml:"exposure_symbols" envconfig:"EXPOSURE_SYMBOLS"`
	Overrides       map[string]float64 `yaml:"overrides" envconfig:"OVERRIDES"`
	DefaultRFRate   float64            `yaml:"default_rf_rate" envconfig:"DEFAULT_RF_RATE" validate:"gt=0"`
	StrictJoinKeys  bool               `yaml:"strict_join_keys" envconfig:"STRICT_JOIN_KEYS"`
	OutputFile      string             `yaml:"output_file" envconfig:"OUTPUT_FILE" validate:"required"`
	OutputXLSX      bool               `yaml:"output_xlsx" envconfig:"OUTPUT_XLSX"`
	OverridesXLSX   bool               `yaml:"overrides_xlsx" envconfig:"OVERRIDES_XLSX"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// TelemetryConfig contains metrics and tracing configuration
type TelemetryConfig struct {
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricsAddr   string `yaml:"metrics_addr" envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
}

// Load loads configuration from defaults, an optional YAML file and the environment.
// configFile may be empty, in which case the usual locations are searched.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment variables override file values; unset variables leave them alone
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	c.Environment = strings.ToUpper(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = EnvProd
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	if err := validator.New().Struct(c); err != nil {
		return err
	}
	return nil
}

// ActiveProfile returns the database profile selected by Environment
func (c *Config) ActiveProfile() DatabaseProfile {
	if c.Environment == EnvDev {
		return c.Databases.Dev
	}
	return c.Databases.Prod
}

// AsOf returns the configured as-of date, or today's date in local time
func (c *Config) AsOf() (time.Time, error) {
	if c.Pipeline.AsOfDate == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(DateLayout, c.Pipeline.AsOfDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as_of_date %q: %w", c.Pipeline.AsOfDate, err)
	}
	return t, nil
}

// RequirePricing reports an error when the pricing endpoint is not configured
func (c *Config) RequirePricing() error {
	if c.Pricing.BaseURL == "" {
		return fmt.Errorf("pricing base URL is not configured (set %s_PRICING_BASE_URL)", EnvPrefix)
	}
	return nil
}

// RequireBackOffice reports an error when the back-office DSN of the active profile is missing
func (c *Config) RequireBackOffice() error {
	if c.ActiveProfile().BackOfficeDSN == "" {
		return fmt.Errorf("back office DSN is not configured for environment %s", c.Environment)
	}
	return nil
}

// RequireCrate reports an error when the CrateDB DSN of the active profile is missing
func (c *Config) RequireCrate() error {
	if c.ActiveProfile().CrateDSN == "" {
		return fmt.Errorf("crate DSN is not configured for environment %s", c.Environment)
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Environment: EnvProd,
		Databases: DatabasesConfig{
			Driver: DefaultDriver,
		},
		Pricing: PricingConfig{
			IVolScheme:     "European",
			PriceScheme:    "American",
			Model:          "BSM",
			ResponseFormat: "auto",
			CallDelay:      DefaultCallDelay,
			Concurrency:    1,
		},
		Pipeline: PipelineConfig{
			PositionSource:  "db",
			StrategyIDs:     DefaultStrategyIDs(),
			ExpiryPatterns:  DefaultExpiryPatterns(),
			ExposureSymbols: DefaultExposureSymbols(),
			Overrides:       map[string]float64{},
			DefaultRFRate:   DefaultRFRate,
			OutputFile:      DefaultOutputFile,
			OverridesXLSX:   true,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/optpricer.log",
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			TraceExporter: "none",
		},
		Paths: PathsConfig{
			OutputDir: ".",
		},
	}
}
