package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txfeatures/internal/feature"
	"txfeatures/internal/transaction"
)

func sampleRecords() []*feature.Record {
	base := time.Date(2018, 4, 1, 8, 0, 0, 0, time.UTC)
	return []*feature.Record{
		{
			Transaction: transaction.Transaction{ID: 1, CustomerID: 10, TerminalID: 20, Timestamp: base, Amount: decimal.RequireFromString("12.30")},
			Customer:    []feature.CustomerWindow{{Days: 1, TxCount: 1, AvgAmount: decimal.RequireFromString("12.30")}},
			Terminal:    []feature.TerminalWindow{{Days: 7, FraudCount: 0, Risk: decimal.Zero}},
		},
		{
			Transaction:   transaction.Transaction{ID: 2, CustomerID: 10, TerminalID: 21, Timestamp: base.Add(time.Hour), Amount: decimal.RequireFromString("7.70"), Fraud: true},
			DuringWeekend: true,
			Customer:      []feature.CustomerWindow{{Days: 1, TxCount: 2, AvgAmount: decimal.NewFromInt(10)}},
			Terminal:      []feature.TerminalWindow{{Days: 7, FraudCount: 1, Risk: decimal.RequireFromString("0.25")}},
		},
	}
}

func TestSQLiteSinkWriteRecords(t *testing.T) {
	ctx := context.Background()
	opts := feature.Options{CustomerWindows: []int{1}, TerminalWindows: []int{7}, DelayPeriodDays: 7}

	sink, err := OpenSQLiteSink(ctx, filepath.Join(t.TempDir(), "features.db"), zerolog.Nop())
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.WriteRecords(ctx, sampleRecords(), opts, 4))
	// a second write replaces the table rather than appending
	require.NoError(t, sink.WriteRecords(ctx, sampleRecords(), opts, 4))

	n, err := sink.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var (
		count int
		risk  float64
	)
	row := sink.db.QueryRowContext(ctx,
		"SELECT customer_id_nb_tx_1day_window, terminal_id_risk_7day_window FROM transaction_features WHERE transaction_id = 2")
	require.NoError(t, row.Scan(&count, &risk))
	assert.Equal(t, 2, count)
	assert.InDelta(t, 0.25, risk, 1e-9)
}

func TestEncodeFeatures(t *testing.T) {
	payload, err := encodeFeatures(sampleRecords()[1], 2)
	require.NoError(t, err)

	var decoded map[string]decimal.Decimal
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Len(t, decoded, 4)
	assert.True(t, decoded["customer_id_nb_tx_1day_window"].Equal(decimal.NewFromInt(2)))
	assert.True(t, decoded["terminal_id_risk_7day_window"].Equal(decimal.RequireFromString("0.25")))
}

func TestMigrationURL(t *testing.T) {
	got, err := migrationURL("postgres://u:p@localhost:5432/fraud?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@localhost:5432/fraud?sslmode=disable", got)

	got, err = migrationURL("postgresql://localhost/fraud")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://localhost/fraud", got)

	_, err = migrationURL("host=localhost dbname=fraud")
	assert.Error(t, err)
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestStoreNotConfigured(t *testing.T) {
	var s *Store
	_, err := s.ListTransactions(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewStore(nil).CountTransactions(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNumeric(t *testing.T) {
	n := numeric(decimal.RequireFromString("57.16"))
	assert.True(t, n.Valid)
	assert.Equal(t, int32(-2), n.Exp)
	assert.Equal(t, "5716", n.Int.String())
}

type fakeBatchResults struct {
	pgx.BatchResults
	err error
}

func (f fakeBatchResults) Close() error { return f.err }

type fakeTx struct {
	pgx.Tx
	failAt     int
	batches    []int
	committed  bool
	rolledBack bool
}

func (f *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b.Len())
	if len(f.batches) == f.failAt {
		return fakeBatchResults{err: errors.New("duplicate key")}
	}
	return fakeBatchResults{}
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

func upsertRecords(n int) []*feature.Record {
	records := make([]*feature.Record, n)
	for i := range records {
		records[i] = &feature.Record{Transaction: transaction.Transaction{
			ID:        int64(i + 1),
			Timestamp: time.Date(2018, 4, 1, i, 0, 0, 0, time.UTC),
			Amount:    decimal.NewFromInt(10),
		}}
	}
	return records
}

func TestUpsertFeaturesCommitsOnce(t *testing.T) {
	tx := &fakeTx{}
	require.NoError(t, upsertFeatures(context.Background(), tx, uuid.New(), upsertRecords(5), 4, 2))

	assert.Equal(t, []int{2, 2, 1}, tx.batches)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
}

func TestUpsertFeaturesRollsBackFailedBatch(t *testing.T) {
	tx := &fakeTx{failAt: 2}
	err := upsertFeatures(context.Background(), tx, uuid.New(), upsertRecords(5), 4, 2)
	require.ErrorContains(t, err, "upsert features [2:4]")

	assert.Len(t, tx.batches, 2, "later batches are not sent")
	assert.False(t, tx.committed)
	assert.True(t, tx.rolledBack)
}
