package config

import (
	"github.com/spf13/pflag"
)

const (
	flagConfig            = "config"
	flagDriver            = "driver"
	flagDSN               = "dsn"
	flagPlatformDSN       = "platform-dsn"
	flagZone              = "zone"
	flagHorizon           = "horizon"
	flagSettleDelay       = "settle-delay"
	flagCallTimeout       = "call-timeout"
	flagPollInterval      = "poll-interval"
	flagResyncConcurrency = "resync-concurrency"
	flagLogLevel          = "log-level"
	flagLogFormat         = "log-format"
)

// RegisterFlags declares the configuration flags on fs. Defaults shown in
// help output come from LoadDefaults; they are only applied when a flag is
// set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(flagConfig, "c", "", "path to a JSON or YAML config file")
	fs.String(flagDriver, d.StoreDriver, "store driver: sqlite or postgres")
	fs.StringP(flagDSN, "d", d.DatabaseDSN, "database DSN")
	fs.String(flagPlatformDSN, d.PlatformDSN, "SQLite DSN of the local notification platform state")
	fs.StringP(flagZone, "z", d.Zone, "IANA time zone for reminder wall-clock times")
	fs.Int(flagHorizon, d.Horizon, "occurrences materialized per recurring reminder")
	fs.Duration(flagSettleDelay, d.SettleDelay, "pause between recovery and re-initialization")
	fs.Duration(flagCallTimeout, d.CallTimeout, "timeout for each notification platform call")
	fs.Duration(flagPollInterval, d.PollInterval, "dispatcher poll interval")
	fs.Int(flagResyncConcurrency, d.ResyncConcurrency, "entries synchronized in parallel during resync")
	fs.String(flagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.String(flagLogFormat, d.LogFormat, "log format: text or json")
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	get := func(name string, apply func() error) {
		if err != nil || fs.Lookup(name) == nil || !fs.Changed(name) {
			return
		}
		err = apply()
	}

	get(flagDriver, func() (e error) { cfg.StoreDriver, e = fs.GetString(flagDriver); return })
	get(flagDSN, func() (e error) { cfg.DatabaseDSN, e = fs.GetString(flagDSN); return })
	get(flagPlatformDSN, func() (e error) { cfg.PlatformDSN, e = fs.GetString(flagPlatformDSN); return })
	get(flagZone, func() (e error) { cfg.Zone, e = fs.GetString(flagZone); return })
	get(flagHorizon, func() (e error) { cfg.Horizon, e = fs.GetInt(flagHorizon); return })
	get(flagSettleDelay, func() (e error) { cfg.SettleDelay, e = fs.GetDuration(flagSettleDelay); return })
	get(flagCallTimeout, func() (e error) { cfg.CallTimeout, e = fs.GetDuration(flagCallTimeout); return })
	get(flagPollInterval, func() (e error) { cfg.PollInterval, e = fs.GetDuration(flagPollInterval); return })
	get(flagResyncConcurrency, func() (e error) {
		cfg.ResyncConcurrency, e = fs.GetInt(flagResyncConcurrency)
		return
	})
	get(flagLogLevel, func() (e error) { cfg.LogLevel, e = fs.GetString(flagLogLevel); return })
	get(flagLogFormat, func() (e error) { cfg.LogFormat, e = fs.GetString(flagLogFormat); return })

	return err
}
