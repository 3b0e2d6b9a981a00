package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"txfeatures/internal/feature"
	"txfeatures/internal/transaction"
)

// ReaderOptions controls transaction log parsing.
type ReaderOptions struct {
	TimeLayout string
	Location   *time.Location
}

var requiredColumns = []string{
	feature.ColumnTransactionID,
	feature.ColumnDatetime,
	feature.ColumnCustomerID,
	feature.ColumnTerminalID,
	feature.ColumnAmount,
	feature.ColumnFraud,
}

// ReadTransactions parses a CSV transaction log. Rows whose identifiers cannot be parsed abort the
// read; other field problems are attached to the transaction as a Defect so that only the owning
// entity groups fail later on.
func ReadTransactions(r io.Reader, opts ReaderOptions) ([]transaction.Transaction, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("transaction log is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]int)
	txs := make([]transaction.Transaction, 0, 1024)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		tx, err := parseRow(row, index, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if prev, dup := seen[tx.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate %s %d (first seen on line %d)", line, feature.ColumnTransactionID, tx.ID, prev)
		}
		seen[tx.ID] = line
		txs = append(txs, tx)
	}

	return txs, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return index, nil
}

func parseRow(row []string, index map[string]int, opts ReaderOptions) (transaction.Transaction, error) {
	field := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var tx transaction.Transaction
	var err error
	if tx.ID, err = parseID(feature.ColumnTransactionID, field(feature.ColumnTransactionID)); err != nil {
		return tx, err
	}
	if tx.CustomerID, err = parseID(feature.ColumnCustomerID, field(feature.ColumnCustomerID)); err != nil {
		return tx, err
	}
	if tx.TerminalID, err = parseID(feature.ColumnTerminalID, field(feature.ColumnTerminalID)); err != nil {
		return tx, err
	}

	var defects []error
	if tx.Timestamp, err = parseTimestamp(field(feature.ColumnDatetime), opts); err != nil {
		defects = append(defects, fmt.Errorf("%s: %w", feature.ColumnDatetime, err))
	}
	if tx.Amount, err = parseAmount(field(feature.ColumnAmount)); err != nil {
		defects = append(defects, fmt.Errorf("%s: %w", feature.ColumnAmount, err))
	}
	if tx.Fraud, err = parseFlag(field(feature.ColumnFraud)); err != nil {
		defects = append(defects, fmt.Errorf("%s: %w", feature.ColumnFraud, err))
	}
	tx.Defect = errors.Join(defects...)

	return tx, nil
}

func parseID(col, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%s is missing", col)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer", col, raw)
	}
	return id, nil
}

func parseTimestamp(raw string, opts ReaderOptions) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing")
	}
	if opts.TimeLayout != "" {
		if ts, err := time.ParseInLocation(opts.TimeLayout, raw, opts.Location); err == nil {
			return ts, nil
		}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q", raw)
	}
	return ts, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, errors.New("missing")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("cannot parse %q", raw)
	}
	return amount, nil
}

func parseFlag(raw string) (bool, error) {
	if raw == "" {
		return false, errors.New("missing")
	}
	flag, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("cannot parse %q", raw)
	}
	return flag, nil
}
