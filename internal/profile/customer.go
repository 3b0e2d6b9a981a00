package profile

import (
	"github.com/rs/zerolog"

	"txfeatures/internal/feature"
	"txfeatures/internal/window"
)

// CustomerProfiler computes rolling transaction counts and average amounts per customer.
type CustomerProfiler struct {
	windows []int
	logger  zerolog.Logger
}

// NewCustomerProfiler constructs a profiler for the given window sizes in days.
func NewCustomerProfiler(windows []int, logger zerolog.Logger) *CustomerProfiler {
	return &CustomerProfiler{
		windows: append([]int(nil), windows...),
		logger:  componentLogger(logger, feature.PassCustomer),
	}
}

func (p *CustomerProfiler) Pass() feature.Pass { return feature.PassCustomer }

func (p *CustomerProfiler) Key(rec *feature.Record) int64 { return rec.CustomerID }

// Profile fills Customer windows on every record, or none of them on error.
func (p *CustomerProfiler) Profile(records []*feature.Record) error {
	if len(records) == 0 {
		return nil
	}
	if txID, err := validate(records); err != nil {
		return groupError(p, records, txID, err)
	}

	amounts := points(records, func(rec *feature.Record) window.Point {
		return window.Point{Time: rec.Timestamp, Value: rec.Amount}
	})

	results := make([][]feature.CustomerWindow, len(records))
	for i := range results {
		results[i] = make([]feature.CustomerWindow, len(p.windows))
	}

	for wi, days := range p.windows {
		stats, err := window.TrailingDays(amounts, days)
		if err != nil {
			return groupError(p, records, 0, err)
		}
		for i, s := range stats {
			// the record itself is always in its window, so Count >= 1
			results[i][wi] = feature.CustomerWindow{
				Days:      days,
				TxCount:   s.Count,
				AvgAmount: s.Sum.Div(decimalCount(s.Count)),
			}
		}
	}

	for i, rec := range records {
		rec.Customer = results[i]
	}

	p.logger.Trace().Int64("customer_id", p.Key(records[0])).Int("transactions", len(records)).Msg("customer profiled")
	return nil
}
