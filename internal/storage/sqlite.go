package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"txfeatures/internal/feature"
)

const sqliteFeaturesTable = "transaction_features"

// SQLiteSink writes enriched records to a local SQLite file.
type SQLiteSink struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLiteSink opens (or creates) the database file at path.
func OpenSQLiteSink(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	sink := &SQLiteSink{db: db, logger: logger.With().Str("component", "sqlite_sink").Logger()}
	for _, pragma := range []string{"PRAGMA journal_mode = WAL;", "PRAGMA synchronous = NORMAL;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			sink.logger.Warn().Err(err).Str("pragma", pragma).Msg("failed to apply pragma")
		}
	}
	return sink, nil
}

// Close closes the database file.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// WriteRecords replaces the feature table with the given records in one transaction.
func (s *SQLiteSink) WriteRecords(ctx context.Context, records []*feature.Record, opts feature.Options, places int32) error {
	columns := feature.FeatureColumns(opts)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqliteFeaturesTable); err != nil {
		return fmt.Errorf("drop %s: %w", sqliteFeaturesTable, err)
	}
	if _, err := tx.ExecContext(ctx, createFeaturesTableSQL(columns)); err != nil {
		return fmt.Errorf("create %s: %w", sqliteFeaturesTable, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertFeaturesSQL(columns))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, 0, 9+len(columns))
	for _, rec := range records {
		values := rec.Values(places)

		args = args[:0]
		args = append(args,
			rec.ID,
			rec.Timestamp.Unix(),
			rec.CustomerID,
			rec.TerminalID,
			rec.Amount.String(),
			rec.Fraud,
			rec.DuringWeekend,
			rec.DuringNight,
		)
		for _, col := range columns {
			args = append(args, values[col])
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert transaction %d: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}

	s.logger.Info().Int("records", len(records)).Msg("features written to sqlite")
	return nil
}

// CountRecords returns the number of stored feature rows.
func (s *SQLiteSink) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+sqliteFeaturesTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sqlite features: %w", err)
	}
	return n, nil
}

func createFeaturesTableSQL(columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE " + sqliteFeaturesTable + " (\n")
	b.WriteString("  transaction_id INTEGER PRIMARY KEY,\n")
	b.WriteString("  tx_datetime INTEGER NOT NULL,\n")
	b.WriteString("  customer_id INTEGER NOT NULL,\n")
	b.WriteString("  terminal_id INTEGER NOT NULL,\n")
	b.WriteString("  tx_amount TEXT NOT NULL,\n")
	b.WriteString("  tx_fraud INTEGER NOT NULL,\n")
	b.WriteString("  tx_during_weekend INTEGER NOT NULL,\n")
	b.WriteString("  tx_during_night INTEGER NOT NULL")
	for _, col := range columns {
		b.WriteString(",\n  " + strings.ToLower(col) + " NUMERIC NOT NULL")
	}
	b.WriteString("\n)")
	return b.String()
}

func insertFeaturesSQL(columns []string) string {
	names := []string{
		"transaction_id", "tx_datetime", "customer_id", "terminal_id",
		"tx_amount", "tx_fraud", "tx_during_weekend", "tx_during_night",
	}
	for _, col := range columns {
		names = append(names, strings.ToLower(col))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	return "INSERT INTO " + sqliteFeaturesTable + " (" + strings.Join(names, ", ") + ") VALUES (" + placeholders + ")"
}
