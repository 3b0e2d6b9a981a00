package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one row of the historical transaction log.
type Transaction struct {
	ID         int64
	CustomerID int64
	TerminalID int64
	Timestamp  time.Time
	Amount     decimal.Decimal
	Fraud      bool

	// Defect is set by readers when a non-key field could not be parsed.
	Defect error
}

// FraudValue returns the fraud label as 0 or 1.
func (t Transaction) FraudValue() decimal.Decimal {
	if t.Fraud {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// Before orders transactions by timestamp, then by identifier.
func Before(a, b Transaction) bool {
	if a.Timestamp.Equal(b.Timestamp) {
		return a.ID < b.ID
	}
	return a.Timestamp.Before(b.Timestamp)
}
