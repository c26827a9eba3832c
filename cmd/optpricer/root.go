package main

import (
	"github.com/spf13/cobra"

	"optpricer/internal/config"
	apperrors "optpricer/internal/errors"
	"optpricer/internal/infrastructure"
	"optpricer/internal/validation"
	"optpricer/pkg/contracts"
)

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	configFile string
	outputDir  string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "Price option positions against the pricing service",
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: config.yaml or configs/config.yaml)")
	root.PersistentFlags().StringVar(&opts.outputDir, "output-dir", "", "directory for generated files (overrides paths.output_dir)")

	root.AddCommand(
		newRunCmd(opts),
		newExpiriesCmd(opts),
		newMappingExpiriesCmd(opts),
		newSettlementsCmd(opts),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and builds the logger. The caller closes the logger.
func setup(opts *globalOptions) (*config.Config, *infrastructure.Logger, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, nil, err
	}
	if opts.outputDir != "" {
		cfg.Paths.OutputDir = opts.outputDir
	}

	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	if err := validation.NewFileValidator(logger.Logger).ValidateOutputDirectory(cfg.GetPaths().OutputDir); err != nil {
		logger.Close()
		return nil, nil, apperrors.NewConfigError("output directory unusable", err)
	}
	return cfg, logger, nil
}
