package feature

import (
	"fmt"

	"github.com/shopspring/decimal"

	"txfeatures/internal/transaction"
)

// CustomerWindow holds spending features over one trailing window.
type CustomerWindow struct {
	Days      int
	TxCount   int
	AvgAmount decimal.Decimal
}

// TerminalWindow holds delayed fraud features over one window.
type TerminalWindow struct {
	Days       int
	FraudCount int
	Risk       decimal.Decimal
}

// Record is a transaction enriched with its derived features.
type Record struct {
	transaction.Transaction

	DuringWeekend bool
	DuringNight   bool

	Customer []CustomerWindow
	Terminal []TerminalWindow
}

// Column names follow the layout of the reference dataset.
const (
	ColumnTransactionID = "TRANSACTION_ID"
	ColumnDatetime      = "TX_DATETIME"
	ColumnCustomerID    = "CUSTOMER_ID"
	ColumnTerminalID    = "TERMINAL_ID"
	ColumnAmount        = "TX_AMOUNT"
	ColumnFraud         = "TX_FRAUD"
	ColumnWeekend       = "TX_DURING_WEEKEND"
	ColumnNight         = "TX_DURING_NIGHT"
)

func CustomerCountColumn(days int) string {
	return fmt.Sprintf("CUSTOMER_ID_NB_TX_%dDAY_WINDOW", days)
}

func CustomerAvgAmountColumn(days int) string {
	return fmt.Sprintf("CUSTOMER_ID_AVG_AMOUNT_%dDAY_WINDOW", days)
}

func TerminalCountColumn(days int) string {
	return fmt.Sprintf("TERMINAL_ID_NB_TX_%dDAY_WINDOW", days)
}

func TerminalRiskColumn(days int) string {
	return fmt.Sprintf("TERMINAL_ID_RISK_%dDAY_WINDOW", days)
}

// Values flattens the window features into column/value pairs, rendering decimals with places digits.
func (r *Record) Values(places int32) map[string]string {
	out := make(map[string]string, 2*len(r.Customer)+2*len(r.Terminal))
	for _, w := range r.Customer {
		out[CustomerCountColumn(w.Days)] = fmt.Sprintf("%d", w.TxCount)
		out[CustomerAvgAmountColumn(w.Days)] = w.AvgAmount.StringFixed(places)
	}
	for _, w := range r.Terminal {
		out[TerminalCountColumn(w.Days)] = fmt.Sprintf("%d", w.FraudCount)
		out[TerminalRiskColumn(w.Days)] = w.Risk.StringFixed(places)
	}
	return out
}

// FeatureColumns lists window columns in output order for the given options.
func FeatureColumns(opts Options) []string {
	cols := make([]string, 0, 2*len(opts.CustomerWindows)+2*len(opts.TerminalWindows))
	for _, w := range opts.CustomerWindows {
		cols = append(cols, CustomerCountColumn(w), CustomerAvgAmountColumn(w))
	}
	for _, w := range opts.TerminalWindows {
		cols = append(cols, TerminalCountColumn(w), TerminalRiskColumn(w))
	}
	return cols
}
