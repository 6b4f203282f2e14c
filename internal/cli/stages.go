package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/BartekS5/marketload/internal/etl"
	"github.com/BartekS5/marketload/pkg/models"
	"github.com/spf13/cobra"
)

func newFetchCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <output.csv>",
		Short: "Fetch the configured market chart into a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			src, closeSource := newSource(cfg, "")
			defer closeSource()

			raw, err := src.Fetch(cmd.Context(), cfg.API.FetchParams)
			if err != nil {
				return &etl.StageError{Stage: etl.StageFetch, Err: err}
			}
			err = etl.WriteFile(args[0], func(w io.Writer) error {
				return etl.WriteRawCSV(w, raw)
			})
			if err != nil {
				return &etl.StageError{Stage: etl.StageFetch, Err: err}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Data saved to %s\n", args[0])
			return nil
		},
	}
}

func newValidateCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <input.csv> <output.csv>",
		Short: "Validate a fetched CSV file and write the sorted result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := validateFile(opts.cfg.Validation, args[0])
			if err != nil {
				return &etl.StageError{Stage: etl.StageValidate, Err: err}
			}
			err = etl.WriteFile(args[1], func(w io.Writer) error {
				return etl.WriteRecordsCSV(w, records)
			})
			if err != nil {
				return &etl.StageError{Stage: etl.StageValidate, Err: err}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Validated data saved to %s\n", args[1])
			return nil
		},
	}
}

func validateFile(rules models.ValidationRules, path string) ([]models.Record, error) {
	raw, err := etl.ReadRawCSVFile(path)
	if err != nil {
		return nil, err
	}
	return etl.NewValidator(rules).Validate(raw)
}

func newLoadCmd(opts *RootOptions) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "load <input.csv>",
		Short: "Load a validated CSV file into the destination table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.withBackend(backend)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return &etl.StageError{Stage: etl.StageLoad, Err: err}
			}
			records, err := etl.ReadRecordsCSV(f)
			f.Close()
			if err != nil {
				return &etl.StageError{Stage: etl.StageLoad, Err: err}
			}

			sink, table, err := newSink(cfg)
			if err != nil {
				return &etl.StageError{Stage: etl.StageLoad, Err: err}
			}
			count, err := sink.Write(cmd.Context(), records, table)
			if err != nil {
				return &etl.StageError{Stage: etl.StageLoad, Err: err}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data successfully loaded to %s table: %s\n", sink.Backend(), table)
			fmt.Fprintf(out, "Total rows in table: %d\n", count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Destination backend (embedded or warehouse); defaults to destination.backend")
	return cmd
}
