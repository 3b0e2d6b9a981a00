// Package profile derives per-entity window features for one entity group at a time.
package profile

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"txfeatures/internal/feature"
	"txfeatures/internal/window"
)

// Profiler enriches the records of a single entity in place.
type Profiler interface {
	Pass() feature.Pass
	Key(rec *feature.Record) int64
	Profile(records []*feature.Record) error
}

func groupError(p Profiler, records []*feature.Record, txID int64, err error) *feature.GroupError {
	var key int64
	if len(records) > 0 {
		key = p.Key(records[0])
	}
	return &feature.GroupError{Pass: p.Pass(), Key: key, TransactionID: txID, Err: err}
}

func points(records []*feature.Record, value func(*feature.Record) window.Point) []window.Point {
	out := make([]window.Point, len(records))
	for i, rec := range records {
		out[i] = value(rec)
	}
	return out
}

func componentLogger(logger zerolog.Logger, pass feature.Pass) zerolog.Logger {
	return logger.With().Str("component", "profile").Str("pass", string(pass)).Logger()
}

func decimalCount(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
