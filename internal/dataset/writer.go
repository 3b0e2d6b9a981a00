package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"txfeatures/internal/feature"
)

// WriterOptions controls how enriched records are rendered.
type WriterOptions struct {
	TimeLayout    string
	DecimalPlaces int32
}

// Header returns the output columns for the given window settings.
func Header(opts feature.Options) []string {
	header := append([]string(nil), requiredColumns...)
	header = append(header, feature.ColumnWeekend, feature.ColumnNight)
	return append(header, feature.FeatureColumns(opts)...)
}

// WriteRecords writes enriched records as CSV in the order given.
func WriteRecords(w io.Writer, records []*feature.Record, features feature.Options, opts WriterOptions) error {
	writer := csv.NewWriter(w)

	header := Header(features)
	if err := writer.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, rec := range records {
		values := rec.Values(opts.DecimalPlaces)

		row = row[:0]
		row = append(row,
			strconv.FormatInt(rec.ID, 10),
			rec.Timestamp.Format(opts.TimeLayout),
			strconv.FormatInt(rec.CustomerID, 10),
			strconv.FormatInt(rec.TerminalID, 10),
			rec.Amount.String(),
			flag(rec.Fraud),
			flag(rec.DuringWeekend),
			flag(rec.DuringNight),
		)
		for _, col := range header[len(row):] {
			value, ok := values[col]
			if !ok {
				return fmt.Errorf("transaction %d: missing feature %s", rec.ID, col)
			}
			row = append(row, value)
		}

		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
