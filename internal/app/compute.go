package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txfeatures/internal/dataset"
	"txfeatures/internal/engine"
	"txfeatures/internal/feature"
	"txfeatures/internal/storage"
	"txfeatures/internal/transaction"
	"txfeatures/internal/window"
)

// Compute loads a transaction log, derives the features and writes every requested sink.
func (a *App) Compute(ctx context.Context, opts ComputeOptions) error {
	if (opts.InputPath == "") == !opts.FromDB {
		return errors.New("exactly one of --input or --from-db must be provided")
	}
	if opts.OutputPath == "" && opts.SQLitePath == "" && !opts.ToDB && opts.ChartPath == "" {
		return errors.New("at least one of --output, --sqlite, --to-db or --chart must be provided")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := engine.New(a.Config.Features, a.Logger)
	if err != nil {
		return err
	}

	var store *storage.Store
	if opts.FromDB || opts.ToDB {
		var closeStore func()
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot use --from-db or --to-db")
		}
		defer closeStore()
	}

	var source storage.TransactionSource
	if store != nil {
		source = store
	}
	txs, err := a.loadTransactions(ctx, opts, source)
	if err != nil {
		return err
	}

	if opts.ToDB {
		unlock, err := a.lockFeatures(ctx, store)
		if err != nil {
			return err
		}
		if unlock != nil {
			defer unlock()
		}
	}

	res, err := eng.Run(ctx, txs)
	if err != nil {
		return err
	}
	res.Records = recordsInRange(res.Records, opts.From, opts.To)

	var run *storage.FeatureRun
	if opts.ToDB {
		run, err = a.startRun(ctx, store, res, len(txs))
		if err != nil {
			return err
		}
	}

	if groupErr := res.Err(); groupErr != nil && !a.Config.Features.SkipFailedGroups {
		a.finishRun(store, run, res, storage.RunStatusFailed, groupErr)
		return fmt.Errorf("%d entity group(s) failed: %w", len(res.Failures), groupErr)
	}

	if err := a.writeSinks(ctx, opts, store, res); err != nil {
		a.finishRun(store, run, res, storage.RunStatusFailed, err)
		return err
	}

	status := storage.RunStatusCompleted
	if len(res.Failures) > 0 {
		status = storage.RunStatusPartial
	}
	a.finishRun(store, run, res, status, res.Err())

	a.Logger.Info().
		Str("run_id", res.RunID.String()).
		Int("records", len(res.Records)).
		Int("failed_groups", len(res.Failures)).
		Str("status", status).
		Msg("compute finished")
	return nil
}

// loadTransactions reads [from, to) plus the history the windows of its earliest transactions need.
func (a *App) loadTransactions(ctx context.Context, opts ComputeOptions, source storage.TransactionSource) ([]transaction.Transaction, error) {
	from := historyStart(opts.From, a.Config.Features.HistoryDays())

	if opts.FromDB {
		txs, err := source.ListTransactions(ctx, from, opts.To)
		if err != nil {
			return nil, err
		}
		a.Logger.Info().Int("transactions", len(txs)).Msg("transactions loaded from database")
		return txs, nil
	}

	readerOpts, err := a.readerOptions()
	if err != nil {
		return nil, err
	}

	in, closeIn, err := openInput(opts.InputPath)
	if err != nil {
		return nil, err
	}
	defer closeIn()

	txs, err := dataset.ReadTransactions(in, readerOpts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.InputPath, err)
	}
	txs = filterRange(txs, from, opts.To)
	a.Logger.Info().Int("transactions", len(txs)).Str("input", opts.InputPath).Msg("transactions loaded from csv")
	return txs, nil
}

func (a *App) writeSinks(ctx context.Context, opts ComputeOptions, store storage.FeatureStore, res *engine.Result) error {
	features := a.Config.Features
	places := a.Config.Output.DecimalPlaces

	if opts.OutputPath != "" {
		if err := a.writeCSV(opts.OutputPath, res.Records); err != nil {
			return err
		}
	}

	if opts.SQLitePath != "" {
		if err := ensureDir(opts.SQLitePath); err != nil {
			return err
		}
		sink, err := storage.OpenSQLiteSink(ctx, opts.SQLitePath, a.Logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.WriteRecords(ctx, res.Records, features, places); err != nil {
			return err
		}
	}

	if opts.ToDB {
		if err := store.UpsertFeatures(ctx, res.RunID, res.Records, places, a.Config.Database.BatchSize); err != nil {
			return err
		}
		a.Logger.Info().Int("records", len(res.Records)).Msg("features upserted")
	}

	if opts.ChartPath != "" {
		if err := writeDailyChart(opts.ChartPath, res.Records, features); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
	}

	return nil
}

func (a *App) writeCSV(path string, records []*feature.Record) error {
	out, closeOut, err := openOutput(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteRecords(out, records, a.Config.Features, a.writerOptions()); err != nil {
		closeOut()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return closeOut()
}

func (a *App) lockFeatures(ctx context.Context, locker storage.AdvisoryLocker) (func(), error) {
	key := a.Config.Database.AdvisoryLockKey
	if key == 0 {
		return nil, nil
	}
	unlock, acquired, err := locker.TryAdvisoryLock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, errors.New("another compute run holds the feature table lock")
	}
	return unlock, nil
}

func (a *App) startRun(ctx context.Context, store storage.FeatureStore, res *engine.Result, transactions int) (*storage.FeatureRun, error) {
	snapshot, err := json.Marshal(a.Config.Features)
	if err != nil {
		return nil, fmt.Errorf("encode run options: %w", err)
	}
	run := &storage.FeatureRun{
		ID:           res.RunID,
		Status:       storage.RunStatusRunning,
		Options:      snapshot,
		Transactions: transactions,
		StartedAt:    res.Started,
	}
	if err := store.CreateRun(ctx, *run); err != nil {
		return nil, err
	}
	return run, nil
}

// finishRun records the run outcome; failures here are logged, not returned.
func (a *App) finishRun(store storage.FeatureStore, run *storage.FeatureRun, res *engine.Result, status string, cause error) {
	if run == nil {
		return
	}

	finished := time.Now().UTC()
	run.Status = status
	run.Records = len(res.Records)
	run.FailedGroups = len(res.Failures)
	run.FinishedAt = &finished
	if cause != nil {
		msg := cause.Error()
		run.Error = &msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.FinishRun(ctx, *run); err != nil {
		a.Logger.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to record run outcome")
	}
}

// historyStart moves from back by days so windows ending at from see their full history.
func historyStart(from *time.Time, days int) *time.Time {
	if from == nil {
		return nil
	}
	start := from.Add(-window.Days(days))
	return &start
}

func inRange(ts time.Time, from, to *time.Time) bool {
	if from != nil && ts.Before(*from) {
		return false
	}
	return to == nil || ts.Before(*to)
}

func filterRange(txs []transaction.Transaction, from, to *time.Time) []transaction.Transaction {
	if from == nil && to == nil {
		return txs
	}
	out := txs[:0:0]
	for _, tx := range txs {
		if inRange(tx.Timestamp, from, to) {
			out = append(out, tx)
		}
	}
	return out
}

// recordsInRange keeps the records inside [from, to); history loaded for the windows is dropped.
func recordsInRange(records []*feature.Record, from, to *time.Time) []*feature.Record {
	if from == nil && to == nil {
		return records
	}
	out := make([]*feature.Record, 0, len(records))
	for _, rec := range records {
		if inRange(rec.Timestamp, from, to) {
			out = append(out, rec)
		}
	}
	return out
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { file.Close() }, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := ensureDir(path); err != nil {
		return nil, nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}
