package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/manager"
)

// cliOptions holds the flags shared by the subcommands.
type cliOptions struct {
	configPaths     []string
	logLevel        string
	logFormat       string
	shutdownTimeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   appName,
		Short: "rtcd runs RT components, execution contexts and connectors.",
		Long: `rtcd loads a runtime configuration, creates the execution contexts ` +
			`and components it declares, connects their ports and serves the ` +
			`admin API until interrupted.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringSliceVarP(&opts.configPaths, "config", "c",
		defaultConfigPaths(),
		"Configuration file, repeatable; later files override earlier ones (env: RTKIT_CONFIG)")
	flags.StringVar(&opts.logLevel, "log-level", "",
		"Override logging.level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "",
		"Override logging.format: json, text")

	run := newRunCmd(opts)
	run.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout",
		manager.DefaultShutdownTimeout, "Graceful shutdown timeout")

	root.AddCommand(run, newValidateCmd(opts), newVersionCmd())
	return root
}

func defaultConfigPaths() []string {
	if path := os.Getenv("RTKIT_CONFIG"); path != "" {
		return []string{path}
	}
	return nil
}

// loadConfig merges the configured layers and applies the flag overrides.
func loadConfig(opts *cliOptions) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range opts.configPaths {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if opts.logLevel != "" || opts.logFormat != "" {
		if opts.logLevel != "" {
			cfg.Logging.Level = opts.logLevel
		}
		if opts.logFormat != "" {
			cfg.Logging.Format = opts.logFormat
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flags: %w", err)
		}
	}
	return cfg, nil
}

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"configuration is valid: %d execution contexts, %d components, %d connectors\n",
				len(cfg.ExecutionContexts), len(cfg.Components), len(cfg.Connectors))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (built %s)\n", appName, Version, BuildTime)
		},
	}
}
