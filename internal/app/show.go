package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"txfeatures/internal/storage"
)

// Show prints the most recently stored feature rows.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show features")
	}
	if closeStore != nil {
		defer closeStore()
	}

	rows, err := store.ListFeatures(ctx, storage.FeatureFilter{
		CustomerID: opts.CustomerID,
		TerminalID: opts.TerminalID,
		Limit:      opts.Limit,
	})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		run, err := store.GetRun(ctx, rows[0].RunID)
		if err != nil {
			a.Logger.Warn().Err(err).Str("run_id", rows[0].RunID.String()).Msg("failed to load run")
		} else {
			printRun(os.Stdout, run)
		}
	}
	return a.printFeatures(os.Stdout, rows)
}

func printRun(out io.Writer, run storage.FeatureRun) {
	fmt.Fprintf(out, "run %s  status=%s  transactions=%d  records=%d  failed_groups=%d  started=%s\n",
		run.ID, run.Status, run.Transactions, run.Records, run.FailedGroups, run.StartedAt.UTC().Format(time.RFC3339))
	if run.Error != nil {
		fmt.Fprintf(out, "error: %s\n", sanitizeInline(*run.Error))
	}
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	return strings.ReplaceAll(cleaned, "\r", " ")
}

func (a *App) printFeatures(out io.Writer, rows []storage.StoredFeature) error {
	if len(rows) == 0 {
		fmt.Fprintln(out, "no features found")
		return nil
	}

	places := a.Config.Output.DecimalPlaces
	columns := featureKeys(rows)

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprint(writer, "Time (UTC)\tTransaction\tCustomer\tTerminal\tAmount\tFraud")
	for _, col := range columns {
		fmt.Fprintf(writer, "\t%s", col)
	}
	fmt.Fprintln(writer)

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%d\t%d\t%s\t%t",
			row.Timestamp.UTC().Format(time.RFC3339),
			row.TransactionID,
			row.CustomerID,
			row.TerminalID,
			formatDecimal(row.Amount, 2),
			row.Fraud,
		)
		for _, col := range columns {
			v, ok := row.Features[col]
			if !ok {
				fmt.Fprint(writer, "\t-")
				continue
			}
			fmt.Fprintf(writer, "\t%s", formatDecimal(v, places))
		}
		fmt.Fprintln(writer)
	}

	return writer.Flush()
}

// featureKeys collects the feature names present across rows in a stable order.
func featureKeys(rows []storage.StoredFeature) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, row := range rows {
		for k := range row.Features {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
