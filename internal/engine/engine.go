package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"txfeatures/internal/calendar"
	"txfeatures/internal/feature"
	"txfeatures/internal/profile"
	"txfeatures/internal/transaction"
)

// Result is the outcome of one feature computation run.
type Result struct {
	RunID    uuid.UUID
	Records  []*feature.Record
	Failures []*feature.GroupError
	Started  time.Time
	Finished time.Time
}

// Err joins the group failures, or returns nil when every group succeeded.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Engine partitions a transaction log by entity and runs the profilers per group.
type Engine struct {
	opts     feature.Options
	customer profile.Profiler
	terminal profile.Profiler
	workers  int
	logger   zerolog.Logger
}

// New constructs an engine from validated options.
func New(opts feature.Options, logger zerolog.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Engine{
		opts:     opts,
		customer: profile.NewCustomerProfiler(opts.CustomerWindows, logger),
		terminal: profile.NewTerminalProfiler(opts.DelayPeriodDays, opts.TerminalWindows, logger),
		workers:  workers,
		logger:   logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Options returns the window settings the engine runs with.
func (e *Engine) Options() feature.Options {
	return e.opts
}

// Run enriches the log. The customer pass completes before the terminal pass starts, and both
// passes see every transaction so a failed group never removes history from another entity.
// Records belonging to a failed customer or terminal group are left out of Records; survivors
// are returned in ascending (timestamp, transaction id) order.
func (e *Engine) Run(ctx context.Context, txs []transaction.Transaction) (*Result, error) {
	res := &Result{RunID: uuid.New(), Started: time.Now().UTC()}
	logger := e.logger.With().Str("run_id", res.RunID.String()).Logger()

	records := make([]*feature.Record, len(txs))
	for i, tx := range txs {
		rec := &feature.Record{Transaction: tx}
		rec.DuringWeekend, rec.DuringNight = calendar.Extract(tx.Timestamp)
		records[i] = rec
	}
	logger.Info().Int("transactions", len(records)).Int("workers", e.workers).Msg("feature run started")

	profilers := []profile.Profiler{e.customer, e.terminal}
	failed := make([]map[int64]struct{}, len(profilers))
	for i, p := range profilers {
		keys, failures, err := e.pass(ctx, p, records)
		if err != nil {
			return nil, err
		}
		for _, f := range failures {
			logger.Warn().Err(f.Err).
				Str("pass", string(f.Pass)).
				Int64("key", f.Key).
				Int64("transaction_id", f.TransactionID).
				Msg("entity group failed")
		}
		res.Failures = append(res.Failures, failures...)
		failed[i] = keys
	}

	records = slices.DeleteFunc(records, func(rec *feature.Record) bool {
		for i, p := range profilers {
			if _, ok := failed[i][p.Key(rec)]; ok {
				return true
			}
		}
		return false
	})

	sort.SliceStable(records, func(i, j int) bool {
		return transaction.Before(records[i].Transaction, records[j].Transaction)
	})
	res.Records = records
	res.Finished = time.Now().UTC()

	logger.Info().
		Int("records", len(res.Records)).
		Int("failed_groups", len(res.Failures)).
		Dur("elapsed", res.Finished.Sub(res.Started)).
		Msg("feature run finished")
	return res, nil
}

// pass groups records by the profiler's key and profiles every group on the worker pool.
// It returns the keys of the groups that failed.
func (e *Engine) pass(ctx context.Context, p profile.Profiler, records []*feature.Record) (map[int64]struct{}, []*feature.GroupError, error) {
	groups := Partition(records, p.Key)
	keys := make([]int64, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var (
		mu       sync.Mutex
		failed   = make(map[int64]struct{})
		failures []*feature.GroupError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, key := range keys {
		if err := gctx.Err(); err != nil {
			break
		}
		key := key
		group := groups[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.Profile(group); err != nil {
				mu.Lock()
				defer mu.Unlock()
				failed[key] = struct{}{}
				failures = append(failures, asGroupError(p, key, err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Key < failures[j].Key })
	return failed, failures, nil
}

func asGroupError(p profile.Profiler, key int64, err error) *feature.GroupError {
	var groupErr *feature.GroupError
	if errors.As(err, &groupErr) {
		return groupErr
	}
	return &feature.GroupError{Pass: p.Pass(), Key: key, Err: fmt.Errorf("profile group: %w", err)}
}

// Partition splits records into disjoint groups by key, keeping input order within each group.
func Partition(records []*feature.Record, key func(*feature.Record) int64) map[int64][]*feature.Record {
	groups := make(map[int64][]*feature.Record)
	for _, rec := range records {
		k := key(rec)
		groups[k] = append(groups[k], rec)
	}
	return groups
}
