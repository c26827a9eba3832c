package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"optpricer/internal/config"
	"optpricer/internal/dataprocessing"
	"optpricer/internal/datasource"
	apperrors "optpricer/internal/errors"
	"optpricer/internal/exporter"
	"optpricer/internal/files"
	"optpricer/internal/operations"
)

// crateConnector opens the market data store of the active profile
func crateConnector(cfg *config.Config, logger *slog.Logger) (*datasource.Connector, error) {
	if err := cfg.RequireCrate(); err != nil {
		return nil, apperrors.NewConfigError("market data store unavailable", err)
	}
	return datasource.NewConnector(operations.ConnectorCrate, cfg.Databases.Driver, cfg.ActiveProfile().CrateDSN, logger), nil
}

// checkDate rejects anything but YYYY-MM-DD
func checkDate(flag, value string) error {
	if _, err := time.Parse(config.DateLayout, value); err != nil {
		return apperrors.NewAppValidationError(fmt.Sprintf("--%s must be YYYY-MM-DD, got %q", flag, value))
	}
	return nil
}

func newExpiriesCmd(global *globalOptions) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "expiries",
		Short: "Export option expiry metadata after the as-of date to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(global)
			if err != nil {
				return err
			}
			defer logger.Close()

			if asOf != "" {
				cfg.Pipeline.AsOfDate = asOf
			}
			date, err := cfg.AsOf()
			if err != nil {
				return apperrors.NewConfigError("invalid as-of date", err)
			}
			conn, err := crateConnector(cfg, logger.Logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			expiries, err := datasource.NewExpiryStore(conn, logger.Logger).
				Fetch(ctx, date.Format(config.DateLayout), cfg.Pipeline.ExpiryPatterns)
			if err != nil {
				return err
			}

			paths := cfg.GetPaths()
			path, err := exporter.New(paths, logger.Logger).ExpiriesCSV(paths.ExpiriesPath(time.Now()), expiries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d expiries written to %s\n", len(expiries), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "only expiries after this date YYYY-MM-DD (default: today)")
	return cmd
}

func newMappingExpiriesCmd(global *globalOptions) *cobra.Command {
	var mappingFile, start, end string
	cmd := &cobra.Command{
		Use:   "mapping-expiries",
		Short: "Export expiries between two dates for every symbol of a mapping sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkDate("start", start); err != nil {
				return err
			}
			if err := checkDate("end", end); err != nil {
				return err
			}

			cfg, logger, err := setup(global)
			if err != nil {
				return err
			}
			defer logger.Close()

			path, err := files.ResolveInput(mappingFile)
			if err != nil {
				return err
			}
			mapping, err := datasource.ReadMapping(path, logger.Logger)
			if err != nil {
				return err
			}
			conn, err := crateConnector(cfg, logger.Logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			expiries, err := datasource.NewExpiryStore(conn, logger.Logger).FetchForMapping(ctx, mapping, start, end)
			if err != nil {
				return err
			}

			paths := cfg.GetPaths()
			path, err = exporter.New(paths, logger.Logger).MappedExpiriesCSV(paths.ExpiryDataPath(time.Now()), expiries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d expiries written to %s\n", len(expiries), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&mappingFile, "mapping", "", "mapping CSV with opt_symbol, exchange, scheme, tempest_code, commodity_code")
	cmd.Flags().StringVar(&start, "start", "", "first expiry date YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last expiry date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("mapping")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newSettlementsCmd(global *globalOptions) *cobra.Command {
	var requestsFile, tradeDate string
	cmd := &cobra.Command{
		Use:   "settlements",
		Short: "Export settlement prices for the contracts of a request sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkDate("trade-date", tradeDate); err != nil {
				return err
			}

			cfg, logger, err := setup(global)
			if err != nil {
				return err
			}
			defer logger.Close()

			path, err := files.ResolveInput(requestsFile)
			if err != nil {
				return err
			}
			requests, err := datasource.ReadSettlementRequests(path, logger.Logger)
			if err != nil {
				return err
			}
			lookups := make([]datasource.SettlementLookup, 0, len(requests))
			for _, req := range requests {
				lookups = append(lookups, datasource.SettlementLookup{
					Code:   dataprocessing.OptionSymbolCode(req),
					Source: req.Source,
				})
			}

			conn, err := crateConnector(cfg, logger.Logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			settlements, err := datasource.NewSettlementStore(conn, logger.Logger).Fetch(ctx, lookups, tradeDate)
			if err != nil {
				return err
			}

			paths := cfg.GetPaths()
			path, err = exporter.New(paths, logger.Logger).SettlementsXLSX(paths.SettlementsPath(time.Now()), settlements)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d settlements written to %s\n", len(settlements), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestsFile, "requests", "", "CSV with crate_ticks, ym_key, option_type, strike, source")
	cmd.Flags().StringVar(&tradeDate, "trade-date", "", "settlement date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("requests")
	_ = cmd.MarkFlagRequired("trade-date")
	return cmd
}
