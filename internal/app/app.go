package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"txfeatures/internal/config"
	"txfeatures/internal/dataset"
	"txfeatures/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database, a.Config.App.Name)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) readerOptions() (dataset.ReaderOptions, error) {
	loc, err := a.Config.InputLocation()
	if err != nil {
		return dataset.ReaderOptions{}, err
	}
	return dataset.ReaderOptions{TimeLayout: a.Config.Input.TimeLayout, Location: loc}, nil
}

func (a *App) writerOptions() dataset.WriterOptions {
	return dataset.WriterOptions{
		TimeLayout:    a.Config.Output.TimeLayout,
		DecimalPlaces: a.Config.Output.DecimalPlaces,
	}
}

// ComputeOptions configure the compute command.
type ComputeOptions struct {
	InputPath  string
	FromDB     bool
	From       *time.Time
	To         *time.Time
	OutputPath string
	SQLitePath string
	ToDB       bool
	ChartPath  string
}

// ImportOptions configure the import command.
type ImportOptions struct {
	InputPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	CustomerID *int64
	TerminalID *int64
	Limit      int
}
