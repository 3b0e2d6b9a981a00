package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Run statuses recorded in feature_runs.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// FeatureRun represents one persisted feature computation.
type FeatureRun struct {
	ID           uuid.UUID
	Status       string
	Options      json.RawMessage
	Transactions int
	Records      int
	FailedGroups int
	Error        *string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// StoredFeature is a row of transaction_features.
type StoredFeature struct {
	TransactionID int64
	RunID         uuid.UUID
	Timestamp     time.Time
	CustomerID    int64
	TerminalID    int64
	Amount        decimal.Decimal
	Fraud         bool
	DuringWeekend bool
	DuringNight   bool
	Features      map[string]decimal.Decimal
	ComputedAt    time.Time
}

// FeatureFilter narrows ListFeatures. Nil keys match everything.
type FeatureFilter struct {
	CustomerID *int64
	TerminalID *int64
	Limit      int
}
