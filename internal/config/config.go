package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/jobid"
	"github.com/spf13/pflag"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds runtime settings for the reminder engine.
//
// Fields:
//   - StoreDriver / DatabaseDSN: "sqlite" (file path or ":memory:") or "postgres" (pgx DSN).
//   - PlatformDSN: SQLite database holding the local notification platform's state.
//   - Zone: IANA zone used to interpret reminder wall-clock times; UTC when empty or unknown.
//   - Horizon: maximum occurrences materialized per reminder.
//   - MaxAttempts: candidate advances the expander may make before giving up.
//   - ChannelID / ChannelName: delivery channel registered on the platform.
//   - SettleDelay: pause between recovery and re-initialization during a reset.
//   - CallTimeout: upper bound for every platform call.
//   - PollInterval: how often the local dispatcher looks for due jobs.
//   - ResyncConcurrency: entries synchronized in parallel by a full resync.
type Config struct {
	StoreDriver       string
	DatabaseDSN       string
	PlatformDSN       string
	Zone              string
	Horizon           int
	MaxAttempts       int
	ChannelID         string
	ChannelName       string
	SettleDelay       time.Duration
	CallTimeout       time.Duration
	PollInterval      time.Duration
	ResyncConcurrency int
	LogLevel          string
	LogFormat         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.StoreDriver = "sqlite"
	c.DatabaseDSN = "diary.db"
	c.PlatformDSN = "notifications.db"
	c.Zone = ""
	c.Horizon = 30
	c.MaxAttempts = 100
	c.ChannelID = "diary_reminders"
	c.ChannelName = "Diary reminders"
	c.SettleDelay = 500 * time.Millisecond
	c.CallTimeout = 5 * time.Second
	c.PollInterval = time.Second
	c.ResyncConcurrency = 4
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate reports settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.StoreDriver != "sqlite" && c.StoreDriver != "postgres":
		return fmt.Errorf("%w: store driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.DatabaseDSN == "":
		return fmt.Errorf("%w: empty database dsn", ErrInvalidConfig)
	case c.PlatformDSN == "":
		return fmt.Errorf("%w: empty platform dsn", ErrInvalidConfig)
	case c.Horizon <= 0:
		return fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidConfig, c.Horizon)
	case c.Horizon > jobid.MaxHorizon:
		return fmt.Errorf("%w: horizon %d above %d", ErrInvalidConfig, c.Horizon, jobid.MaxHorizon)
	case c.MaxAttempts < c.Horizon:
		return fmt.Errorf("%w: max attempts %d below horizon %d", ErrInvalidConfig, c.MaxAttempts, c.Horizon)
	case c.ResyncConcurrency <= 0:
		return fmt.Errorf("%w: resync concurrency must be positive", ErrInvalidConfig)
	case c.CallTimeout < 0 || c.SettleDelay < 0 || c.PollInterval <= 0:
		return fmt.Errorf("%w: negative or zero interval", ErrInvalidConfig)
	}
	return nil
}

// Load constructs a Config, applies defaults, then overlays the config file,
// environment and flags. fs may be nil when no flags are available (e.g. when
// the engine is embedded in another program).
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	var path string
	if fs != nil {
		path, _ = fs.GetString(flagConfig)
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if fs != nil {
		if err := applyFlags(cfg, fs); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
