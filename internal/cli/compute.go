package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"txfeatures/internal/app"
)

var (
	computeInput  string
	computeFromDB bool
	computeFrom   string
	computeTo     string
	computeOutput string
	computeSQLite string
	computeToDB   bool
	computeChart  string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute calendar, customer and terminal features",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ComputeOptions{
			InputPath:  computeInput,
			FromDB:     computeFromDB,
			OutputPath: computeOutput,
			SQLitePath: computeSQLite,
			ToDB:       computeToDB,
			ChartPath:  computeChart,
		}

		var err error
		if opts.From, err = parseTimeFlag("from", computeFrom); err != nil {
			return err
		}
		if opts.To, err = parseTimeFlag("to", computeTo); err != nil {
			return err
		}
		if opts.From != nil && opts.To != nil && !opts.From.Before(*opts.To) {
			return fmt.Errorf("--from must be before --to")
		}

		return getApp().Compute(cmd.Context(), opts)
	},
}

func init() {
	computeCmd.Flags().StringVar(&computeInput, "input", "", "Transaction CSV to read (- for stdin)")
	computeCmd.Flags().BoolVar(&computeFromDB, "from-db", false, "Read transactions from the database")
	computeCmd.Flags().StringVar(&computeFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	computeCmd.Flags().StringVar(&computeTo, "to", "", "End timestamp (RFC3339, exclusive)")
	computeCmd.Flags().StringVar(&computeOutput, "output", "", "Path to write the feature CSV (- for stdout)")
	computeCmd.Flags().StringVar(&computeSQLite, "sqlite", "", "Path to a SQLite file receiving the features")
	computeCmd.Flags().BoolVar(&computeToDB, "to-db", false, "Upsert features into the database")
	computeCmd.Flags().StringVar(&computeChart, "chart", "", "Path to write a daily PNG chart")
	computeCmd.MarkFlagsMutuallyExclusive("input", "from-db")
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	return &t, nil
}
