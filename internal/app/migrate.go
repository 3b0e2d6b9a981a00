package app

import (
	"errors"
	"fmt"

	"txfeatures/internal/storage"
)

// Migrate applies (up) or rolls back (down) the database schema.
func (a *App) Migrate(direction string) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured; cannot migrate")
	}

	m, err := storage.NewMigrator(a.Config.Database.DSN)
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	a.Logger.Info().Str("direction", direction).Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}
