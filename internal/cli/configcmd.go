package cli

import (
	"github.com/BartekS5/marketload/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(masked(opts.cfg)); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}

const mask = "********"

func masked(cfg *config.Config) config.Config {
	out := *cfg
	if out.Warehouse.Password != "" {
		out.Warehouse.Password = mask
	}
	if out.API.Key != "" {
		out.API.Key = mask
	}
	if out.Cache.Password != "" {
		out.Cache.Password = mask
	}
	if out.Mongo.URI != "" {
		out.Mongo.URI = mask
	}
	return out
}
