package app

import (
	"context"
	"errors"
	"fmt"
)

// Import loads a transaction CSV into the transactions table.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if opts.InputPath == "" {
		return errors.New("--input must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot import")
	}
	defer closeStore()

	txs, err := a.loadTransactions(ctx, ComputeOptions{InputPath: opts.InputPath}, nil)
	if err != nil {
		return err
	}

	valid := txs[:0:0]
	for _, tx := range txs {
		if tx.Defect != nil {
			a.Logger.Warn().Int64("transaction_id", tx.ID).Err(tx.Defect).Msg("skipping malformed transaction")
			continue
		}
		valid = append(valid, tx)
	}
	defects := len(txs) - len(valid)

	n, err := store.ImportTransactions(ctx, valid)
	if err != nil {
		return fmt.Errorf("import transactions: %w", err)
	}

	total, err := store.CountTransactions(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("imported", n).Int("skipped", defects).Int64("stored", total).Msg("import finished")
	return nil
}
