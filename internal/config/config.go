package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"txfeatures/internal/feature"
	"txfeatures/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Features  feature.Options `mapstructure:"features"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	BatchSize       int           `mapstructure:"batch_size"`
}

// InputConfig controls how transaction logs are parsed.
type InputConfig struct {
	TimeLayout string `mapstructure:"time_layout"`
	Location   string `mapstructure:"location"`
}

// OutputConfig controls how enriched records are rendered.
type OutputConfig struct {
	DecimalPlaces int32  `mapstructure:"decimal_places"`
	TimeLayout    string `mapstructure:"time_layout"`
}

// SchedulerConfig governs the periodic refresh of the run command.
type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	AlignToStart   bool          `mapstructure:"align_to_start"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
	RunImmediately bool          `mapstructure:"run_immediately"`
	// Lookback limits each refresh to transactions newer than bucket-Lookback. Zero reads everything.
	Lookback time.Duration `mapstructure:"lookback"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TXFEATURES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	defaults := feature.DefaultOptions()

	v.SetDefault("app.name", "txfeatures")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("features.customer_windows", defaults.CustomerWindows)
	v.SetDefault("features.terminal_windows", defaults.TerminalWindows)
	v.SetDefault("features.delay_period_days", defaults.DelayPeriodDays)
	v.SetDefault("features.workers", 0)
	v.SetDefault("features.skip_failed_groups", false)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x74786665))
	v.SetDefault("database.batch_size", 1000)

	v.SetDefault("input.time_layout", "2006-01-02 15:04:05")
	v.SetDefault("input.location", "UTC")

	v.SetDefault("output.decimal_places", 6)
	v.SetDefault("output.time_layout", "2006-01-02 15:04:05")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.align_to_start", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_immediately", true)
	v.SetDefault("scheduler.lookback", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks; feature settings fail fast before any processing.
func (c *Config) Validate() error {
	if err := c.Features.Validate(); err != nil {
		return err
	}
	if c.Database.BatchSize <= 0 {
		return fmt.Errorf("database.batch_size must be greater than zero")
	}
	if c.Output.DecimalPlaces < 0 {
		return fmt.Errorf("output.decimal_places cannot be negative")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.Lookback < 0 {
		return fmt.Errorf("scheduler.lookback cannot be negative")
	}
	if c.Input.TimeLayout == "" {
		return fmt.Errorf("input.time_layout must be set")
	}
	if _, err := c.InputLocation(); err != nil {
		return err
	}
	return nil
}

// InputLocation resolves the zone naive input timestamps are read in.
func (c *Config) InputLocation() (*time.Location, error) {
	if c.Input.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Input.Location)
	if err != nil {
		return nil, fmt.Errorf("input.location: %w", err)
	}
	return loc, nil
}
