package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/BartekS5/marketload/internal/config"
	"github.com/BartekS5/marketload/internal/etl"
	"github.com/BartekS5/marketload/pkg/database"
	"github.com/spf13/cobra"
)

type RunOptions struct {
	Backend string
	Input   string
	DryRun  bool
}

func newRunCmd(opts *RootOptions) *cobra.Command {
	runOpts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, validate and load in a single pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.withBackend(runOpts.Backend)
			if err != nil {
				return err
			}
			summary, err := runPipeline(cmd, cfg, runOpts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&runOpts.Backend, "backend", "b", "", "Destination backend (embedded or warehouse); defaults to destination.backend")
	cmd.Flags().StringVarP(&runOpts.Input, "input", "i", "", "Read the raw batch from this CSV file instead of the API")
	cmd.Flags().BoolVar(&runOpts.DryRun, "dry-run", false, "Fetch and validate without writing")
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, runOpts *RunOptions) (*etl.RunSummary, error) {
	recorder, closeRecorder := newRecorder(cfg)
	defer closeRecorder()

	metrics := etl.NewMetrics()
	defer pushMetrics(cfg, metrics)

	src, closeSource := newSource(cfg, runOpts.Input)
	defer closeSource()

	pipeline := etl.NewEnhancedPipeline(
		src,
		etl.NewValidator(cfg.Validation),
		nil,
		runOpts.DryRun,
	)
	pipeline.Recorder = recorder
	pipeline.Metrics = metrics
	// The destination is opened only for a batch that passed validation.
	pipeline.OpenSink = func() (etl.StorageSink, error) {
		sink, _, err := newSink(cfg)
		return sink, err
	}

	summary, err := pipeline.Run(cmd.Context(), cfg.API.FetchParams, cfg.Table())
	if summary != nil && summary.Backend == "" {
		summary.Backend = cfg.Destination.Backend
	}
	return summary, err
}

func newHistoryCmd(opts *RootOptions) *cobra.Command {
	var limit int64
	var table string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the MongoDB run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cfg.Mongo.URI == "" {
				return fmt.Errorf("mongo.uri is not configured; the run ledger is disabled")
			}
			if table == "" {
				table = cfg.Table()
			}

			client, err := database.ConnectMongo(cfg.Mongo.URI)
			if err != nil {
				return err
			}
			rec := etl.NewMongoRecorder(client, cfg.Mongo.Database, cfg.Mongo.Collection)
			defer rec.Close(cmd.Context())

			runs, err := rec.Recent(cmd.Context(), table, limit)
			if err != nil {
				return fmt.Errorf("reading run ledger: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tRUN ID\tBACKEND\tSTATE\tROWS\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.StartedAt.Format(time.RFC3339), r.RunID, r.Backend, r.State, r.RowCount, r.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int64VarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().StringVarP(&table, "table", "t", "", "Table to show runs for; defaults to the configured destination table")
	return cmd
}
