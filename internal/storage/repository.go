package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"txfeatures/internal/feature"
	"txfeatures/internal/transaction"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	listTransactionsSQL = `SELECT
        transaction_id,
        tx_datetime,
        customer_id,
        terminal_id,
        tx_amount::text,
        tx_fraud
    FROM transactions
    WHERE ($1::timestamptz IS NULL OR tx_datetime >= $1)
      AND ($2::timestamptz IS NULL OR tx_datetime < $2)
    ORDER BY tx_datetime, transaction_id;`

	countTransactionsSQL = `SELECT COUNT(*) FROM transactions;`

	insertRunSQL = `INSERT INTO feature_runs (
        run_id,
        status,
        options,
        transactions,
        started_at
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	finishRunSQL = `UPDATE feature_runs
    SET status        = $2,
        records       = $3,
        failed_groups = $4,
        error         = $5,
        finished_at   = $6
    WHERE run_id = $1;`

	getRunSQL = `SELECT
        run_id::text,
        status,
        options,
        transactions,
        records,
        failed_groups,
        error,
        started_at,
        finished_at
    FROM feature_runs
    WHERE run_id = $1;`

	upsertFeatureSQL = `INSERT INTO transaction_features (
        transaction_id,
        run_id,
        tx_datetime,
        customer_id,
        terminal_id,
        tx_amount,
        tx_fraud,
        during_weekend,
        during_night,
        features
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (transaction_id) DO UPDATE
    SET
        run_id         = EXCLUDED.run_id,
        tx_datetime    = EXCLUDED.tx_datetime,
        customer_id    = EXCLUDED.customer_id,
        terminal_id    = EXCLUDED.terminal_id,
        tx_amount      = EXCLUDED.tx_amount,
        tx_fraud       = EXCLUDED.tx_fraud,
        during_weekend = EXCLUDED.during_weekend,
        during_night   = EXCLUDED.during_night,
        features       = EXCLUDED.features,
        computed_at    = NOW();`

	listFeaturesSQL = `SELECT
        transaction_id,
        run_id::text,
        tx_datetime,
        customer_id,
        terminal_id,
        tx_amount::text,
        tx_fraud,
        during_weekend,
        during_night,
        features,
        computed_at
    FROM transaction_features
    WHERE ($1::bigint IS NULL OR customer_id = $1)
      AND ($2::bigint IS NULL OR terminal_id = $2)
    ORDER BY tx_datetime DESC, transaction_id DESC
    LIMIT $3;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TransactionSource reads the historical transaction log.
type TransactionSource interface {
	ListTransactions(ctx context.Context, from, to *time.Time) ([]transaction.Transaction, error)
	CountTransactions(ctx context.Context) (int64, error)
}

// TransactionImporter bulk-loads transactions.
type TransactionImporter interface {
	ImportTransactions(ctx context.Context, txs []transaction.Transaction) (int64, error)
}

// FeatureStore persists enriched records and run bookkeeping.
type FeatureStore interface {
	CreateRun(ctx context.Context, run FeatureRun) error
	FinishRun(ctx context.Context, run FeatureRun) error
	GetRun(ctx context.Context, id uuid.UUID) (FeatureRun, error)
	UpsertFeatures(ctx context.Context, runID uuid.UUID, records []*feature.Record, places int32, batchSize int) error
	ListFeatures(ctx context.Context, filter FeatureFilter) ([]StoredFeature, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to transactions, runs and features.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// the session lock also goes away when the connection closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListTransactions lists transactions in [from, to), ordered by timestamp then id.
func (s *Store) ListTransactions(ctx context.Context, from, to *time.Time) ([]transaction.Transaction, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listTransactionsSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list transactions: %w", queryErr)
	}
	defer rows.Close()

	txs := make([]transaction.Transaction, 0)
	for rows.Next() {
		var (
			tx        transaction.Transaction
			amountStr string
		)
		if err := rows.Scan(&tx.ID, &tx.Timestamp, &tx.CustomerID, &tx.TerminalID, &amountStr, &tx.Fraud); err != nil {
			return nil, err
		}
		tx.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			// keep the row so only its entity groups fail
			tx.Defect = fmt.Errorf("parse amount: %w", err)
		}
		txs = append(txs, tx)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txs, nil
}

// CountTransactions counts stored transactions.
func (s *Store) CountTransactions(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countTransactionsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count transactions: %w", scanErr)
	}
	return count, nil
}

// ImportTransactions bulk-copies transactions into the transactions table.
func (s *Store) ImportTransactions(ctx context.Context, txs []transaction.Transaction) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	for _, tx := range txs {
		if tx.Defect != nil {
			return 0, fmt.Errorf("transaction %d: %w", tx.ID, tx.Defect)
		}
	}

	source := pgx.CopyFromSlice(len(txs), func(i int) ([]any, error) {
		tx := txs[i]
		return []any{tx.ID, tx.Timestamp, tx.CustomerID, tx.TerminalID, numeric(tx.Amount), tx.Fraud}, nil
	})

	copied, copyErr := pool.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		[]string{"transaction_id", "tx_datetime", "customer_id", "terminal_id", "tx_amount", "tx_fraud"},
		source,
	)
	if copyErr != nil {
		return 0, fmt.Errorf("import transactions: %w", copyErr)
	}
	return copied, nil
}

// CreateRun records the start of a feature run.
func (s *Store) CreateRun(ctx context.Context, run FeatureRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, insertRunSQL,
		run.ID.String(),
		run.Status,
		[]byte(run.Options),
		run.Transactions,
		run.StartedAt,
	); execErr != nil {
		return fmt.Errorf("create run: %w", execErr)
	}
	return nil
}

// FinishRun stores the outcome of a feature run.
func (s *Store) FinishRun(ctx context.Context, run FeatureRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if run.Error != nil {
		errMsg = *run.Error
	}

	cmdTag, execErr := pool.Exec(ctx, finishRunSQL,
		run.ID.String(),
		run.Status,
		run.Records,
		run.FailedGroups,
		errMsg,
		run.FinishedAt,
	)
	if execErr != nil {
		return fmt.Errorf("finish run: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetRun loads a feature run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (FeatureRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return FeatureRun{}, err
	}

	var (
		run   FeatureRun
		idStr string
	)
	if scanErr := pool.QueryRow(ctx, getRunSQL, id.String()).Scan(
		&idStr,
		&run.Status,
		&run.Options,
		&run.Transactions,
		&run.Records,
		&run.FailedGroups,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	); scanErr != nil {
		return FeatureRun{}, fmt.Errorf("get run: %w", scanErr)
	}
	if run.ID, err = uuid.Parse(idStr); err != nil {
		return FeatureRun{}, fmt.Errorf("parse run id: %w", err)
	}
	return run, nil
}

// UpsertFeatures writes enriched records in batches of batchSize inside one transaction.
func (s *Store) UpsertFeatures(ctx context.Context, runID uuid.UUID, records []*feature.Record, places int32, batchSize int) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin feature upsert: %w", err)
	}
	return upsertFeatures(ctx, tx, runID, records, places, batchSize)
}

// upsertFeatures commits only when every batch succeeded; otherwise nothing is written.
func upsertFeatures(ctx context.Context, tx pgx.Tx, runID uuid.UUID, records []*feature.Record, places int32, batchSize int) error {
	defer tx.Rollback(ctx) //nolint:errcheck

	if batchSize <= 0 {
		batchSize = len(records)
	}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		batch := &pgx.Batch{}
		for _, rec := range records[start:end] {
			payload, err := encodeFeatures(rec, places)
			if err != nil {
				return err
			}
			batch.Queue(upsertFeatureSQL,
				rec.ID,
				runID.String(),
				rec.Timestamp,
				rec.CustomerID,
				rec.TerminalID,
				rec.Amount.String(),
				rec.Fraud,
				rec.DuringWeekend,
				rec.DuringNight,
				payload,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert features [%d:%d]: %w", start, end, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit feature upsert: %w", err)
	}
	return nil
}

// numeric converts a decimal for binary COPY, which cannot take numeric values as text.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func encodeFeatures(rec *feature.Record, places int32) ([]byte, error) {
	values := rec.Values(places)
	numbers := make(map[string]json.Number, len(values))
	for k, v := range values {
		numbers[strings.ToLower(k)] = json.Number(v)
	}
	payload, err := json.Marshal(numbers)
	if err != nil {
		return nil, fmt.Errorf("encode features of transaction %d: %w", rec.ID, err)
	}
	return payload, nil
}

// ListFeatures lists the most recent stored features matching the filter.
func (s *Store) ListFeatures(ctx context.Context, filter FeatureFilter) ([]StoredFeature, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	rows, queryErr := pool.Query(ctx, listFeaturesSQL, filter.CustomerID, filter.TerminalID, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list features: %w", queryErr)
	}
	defer rows.Close()

	features := make([]StoredFeature, 0, limit)
	for rows.Next() {
		f, scanErr := scanStoredFeature(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		features = append(features, f)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return features, nil
}

func scanStoredFeature(rows pgx.Rows) (StoredFeature, error) {
	var (
		f         StoredFeature
		runIDStr  string
		amountStr string
		payload   []byte
	)

	if err := rows.Scan(
		&f.TransactionID,
		&runIDStr,
		&f.Timestamp,
		&f.CustomerID,
		&f.TerminalID,
		&amountStr,
		&f.Fraud,
		&f.DuringWeekend,
		&f.DuringNight,
		&payload,
		&f.ComputedAt,
	); err != nil {
		return StoredFeature{}, err
	}

	var err error
	if f.RunID, err = uuid.Parse(runIDStr); err != nil {
		return StoredFeature{}, fmt.Errorf("parse run id: %w", err)
	}
	if f.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return StoredFeature{}, fmt.Errorf("parse amount: %w", err)
	}
	if err := json.Unmarshal(payload, &f.Features); err != nil {
		return StoredFeature{}, fmt.Errorf("decode features: %w", err)
	}
	return f, nil
}
