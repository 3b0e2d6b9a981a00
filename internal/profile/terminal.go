package profile

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"txfeatures/internal/feature"
	"txfeatures/internal/window"
)

// TerminalProfiler computes delayed fraud counts and risk scores per terminal.
//
// The delayed window of size w covers (t-delay-w, t-delay]: the trailing window of delay+w
// days minus the trailing delay days, whose fraud labels are treated as not yet known.
type TerminalProfiler struct {
	delay   int
	windows []int
	logger  zerolog.Logger
}

// NewTerminalProfiler constructs a profiler for the given delay and window sizes in days.
func NewTerminalProfiler(delay int, windows []int, logger zerolog.Logger) *TerminalProfiler {
	return &TerminalProfiler{
		delay:   delay,
		windows: append([]int(nil), windows...),
		logger:  componentLogger(logger, feature.PassTerminal),
	}
}

func (p *TerminalProfiler) Pass() feature.Pass { return feature.PassTerminal }

func (p *TerminalProfiler) Key(rec *feature.Record) int64 { return rec.TerminalID }

// Profile fills Terminal windows on every record, or none of them on error.
func (p *TerminalProfiler) Profile(records []*feature.Record) error {
	if len(records) == 0 {
		return nil
	}
	if txID, err := validate(records); err != nil {
		return groupError(p, records, txID, err)
	}

	labels := points(records, func(rec *feature.Record) window.Point {
		return window.Point{Time: rec.Timestamp, Value: rec.FraudValue()}
	})

	recent, err := window.TrailingDays(labels, p.delay)
	if err != nil {
		return groupError(p, records, 0, err)
	}

	results := make([][]feature.TerminalWindow, len(records))
	for i := range results {
		results[i] = make([]feature.TerminalWindow, len(p.windows))
	}

	for wi, days := range p.windows {
		wide, err := window.TrailingDays(labels, p.delay+days)
		if err != nil {
			return groupError(p, records, 0, err)
		}
		for i := range wide {
			results[i][wi] = delayedWindow(days, wide[i], recent[i])
		}
	}

	for i, rec := range records {
		rec.Terminal = results[i]
	}

	p.logger.Trace().Int64("terminal_id", p.Key(records[0])).Int("transactions", len(records)).Msg("terminal profiled")
	return nil
}

// delayedWindow subtracts the recent window from the wide one. An empty delayed window
// scores zero fraud and zero risk.
func delayedWindow(days int, wide, recent window.Stat) feature.TerminalWindow {
	qty := wide.Count - recent.Count
	if qty <= 0 {
		return feature.TerminalWindow{Days: days, FraudCount: 0, Risk: decimal.Zero}
	}

	frauds := wide.Sum.Sub(recent.Sum)
	return feature.TerminalWindow{
		Days:       days,
		FraudCount: int(frauds.IntPart()),
		Risk:       frauds.Div(decimalCount(qty)),
	}
}
