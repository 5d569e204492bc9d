package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const envPrefix = "GOPHDIARY_"

// applyEnv overrides cfg with GOPHDIARY_* environment variables.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"STORE_DRIVER": &cfg.StoreDriver,
		"DATABASE_DSN": &cfg.DatabaseDSN,
		"PLATFORM_DSN": &cfg.PlatformDSN,
		"ZONE":         &cfg.Zone,
		"CHANNEL_ID":   &cfg.ChannelID,
		"CHANNEL_NAME": &cfg.ChannelName,
		"LOG_LEVEL":    &cfg.LogLevel,
		"LOG_FORMAT":   &cfg.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"HORIZON":            &cfg.Horizon,
		"MAX_ATTEMPTS":       &cfg.MaxAttempts,
		"RESYNC_CONCURRENCY": &cfg.ResyncConcurrency,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrInvalidConfig, envPrefix, name, v)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"SETTLE_DELAY":  &cfg.SettleDelay,
		"CALL_TIMEOUT":  &cfg.CallTimeout,
		"POLL_INTERVAL": &cfg.PollInterval,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrInvalidConfig, envPrefix, name, v)
		}
		*dst = d
	}
	return nil
}
