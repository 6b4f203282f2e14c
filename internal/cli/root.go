// Package cli handles the command-line interface logic
// using the Cobra library.
package cli

import (
	"github.com/BartekS5/marketload/internal/config"
	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds flags shared by every sub-command and the loaded config.
type RootOptions struct {
	ConfigFile string
	LogLevel   string

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &RootOptions{}

	rootCmd := &cobra.Command{
		Use:   "marketload",
		Short: "marketload - fetch, validate and load market time series",
		Long: `marketload pulls price, volume and market cap series from CoinGecko,
validates them against the configured rules and loads them into an embedded
SQLite database (replace) or a warehouse table (append).

Each stage can run on its own with CSV files in between, or all at once with "run".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "config/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newFetchCmd(opts),
		newValidateCmd(opts),
		newLoadCmd(opts),
		newRunCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

func (o *RootOptions) setup() error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if err := logger.InitLogger(cfg.Log.File, cfg.Log.Level); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// withBackend applies a --backend override and re-validates.
func (o *RootOptions) withBackend(backend string) (*config.Config, error) {
	if backend == "" || backend == o.cfg.Destination.Backend {
		return o.cfg, nil
	}
	cfg := *o.cfg
	cfg.Destination.Backend = backend
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
