// Package config provides centralized configuration management for optpricer.
// It handles loading configuration from multiple sources, validation, and provides
// a type-safe API for accessing configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables, including a .env file (highest priority)
//  2. A YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern OPTPRICER_* for namespacing:
//
//	OPTPRICER_PRICING_BASE_URL=https://pricing.internal/options/api/v1
//	OPTPRICER_DATABASES_PROD_BACK_OFFICE_DSN=postgres://...
//	OPTPRICER_DATABASES_PROD_CRATE_DSN=postgres://crate@...:5432/doc
//	OPTPRICER_PIPELINE_AS_OF_DATE=2025-07-21
//	OPTPRICER_LOGGING_LEVEL=debug
//
// MOSAIC_ENV (DEV or PROD, default PROD) selects which database profile is used.
// Connection strings are never compiled into the binary.
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dsn := cfg.ActiveProfile().BackOfficeDSN
//
// # Testing
//
// Default() returns a configuration that needs no environment variables.
package config
