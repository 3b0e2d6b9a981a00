package feature

import (
	"fmt"
	"slices"
)

// Options are the externally tunable window parameters.
type Options struct {
	CustomerWindows  []int `mapstructure:"customer_windows" json:"customer_windows"`
	TerminalWindows  []int `mapstructure:"terminal_windows" json:"terminal_windows"`
	DelayPeriodDays  int   `mapstructure:"delay_period_days" json:"delay_period_days"`
	Workers          int   `mapstructure:"workers" json:"-"`
	SkipFailedGroups bool  `mapstructure:"skip_failed_groups" json:"skip_failed_groups"`
}

// MaxHorizonDays bounds how far back any window, including the terminal delay, may reach.
const MaxHorizonDays = 36500

// DefaultOptions mirrors the reference feature set: 1, 7 and 30 day windows with a 7 day delay.
func DefaultOptions() Options {
	return Options{
		CustomerWindows: []int{1, 7, 30},
		TerminalWindows: []int{1, 7, 30},
		DelayPeriodDays: 7,
	}
}

// Validate rejects settings that cannot describe a window.
func (o Options) Validate() error {
	if err := validateWindows("customer_windows", o.CustomerWindows); err != nil {
		return err
	}
	if err := validateWindows("terminal_windows", o.TerminalWindows); err != nil {
		return err
	}
	if o.DelayPeriodDays <= 0 || o.DelayPeriodDays > MaxHorizonDays {
		return fmt.Errorf("%w: delay_period_days must be between 1 and %d, got %d", ErrConfiguration, MaxHorizonDays, o.DelayPeriodDays)
	}
	if h := o.HistoryDays(); h > MaxHorizonDays {
		return fmt.Errorf("%w: windows reach back %d days, the limit is %d", ErrConfiguration, h, MaxHorizonDays)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative", ErrConfiguration)
	}
	return nil
}

func validateWindows(name string, windows []int) error {
	if len(windows) == 0 {
		return fmt.Errorf("%w: %s must not be empty", ErrConfiguration, name)
	}
	for i, w := range windows {
		if w <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrConfiguration, name, w)
		}
		if w > MaxHorizonDays {
			return fmt.Errorf("%w: %s window %d exceeds %d days", ErrConfiguration, name, w, MaxHorizonDays)
		}
		if slices.Contains(windows[:i], w) {
			return fmt.Errorf("%w: %s contains duplicate window %d", ErrConfiguration, name, w)
		}
	}
	return nil
}

// HistoryDays is how many days of history before a transaction can influence its features:
// the longest customer window or the delay plus the longest terminal window.
func (o Options) HistoryDays() int {
	return max(longest(o.CustomerWindows), o.DelayPeriodDays+longest(o.TerminalWindows))
}

func longest(windows []int) int {
	if len(windows) == 0 {
		return 0
	}
	return slices.Max(windows)
}
