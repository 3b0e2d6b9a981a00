package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"txfeatures/internal/scheduler"
)

// Run periodically recomputes features from the transactions table back into the database.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return errors.New("database.dsn not configured; cannot run the refresh loop")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched, err := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		AlignToStart:   a.Config.Scheduler.AlignToStart,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
		RunImmediately: a.Config.Scheduler.RunImmediately,
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting feature refresh loop")
	err = sched.Run(ctx, a.refresh)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("refresh loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("feature refresh loop stopped")
	return nil
}

func (a *App) refresh(ctx context.Context, bucket time.Time) error {
	return a.Compute(ctx, refreshOptions(bucket, a.Config.Scheduler.Lookback))
}

// refreshOptions covers [bucket-lookback, bucket), or everything before bucket when lookback is zero.
func refreshOptions(bucket time.Time, lookback time.Duration) ComputeOptions {
	to := bucket
	opts := ComputeOptions{FromDB: true, ToDB: true, To: &to}
	if lookback > 0 {
		from := bucket.Add(-lookback)
		opts.From = &from
	}
	return opts
}
