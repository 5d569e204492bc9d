// Package config loads runtime configuration for the reminder engine and the
// diaryctl maintenance command.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c/--config. Files ending in .yaml
//     or .yml are decoded with yaml.v3, anything else as JSON.
//  3. Environment variables prefixed with GOPHDIARY_.
//  4. Command-line flags registered by RegisterFlags; only flags the user set
//     explicitly override earlier values.
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "500ms" or
// integer nanoseconds:
//
//	{
//	  "store_driver": "sqlite",
//	  "database_dsn": "diary.db",
//	  "zone": "Europe/Riga",
//	  "horizon": 30,
//	  "settle_delay": "500ms",
//	  "call_timeout": "5s"
//	}
//
// Primary API
//
//   - type Config                        : runtime settings
//   - func Load(fs *pflag.FlagSet)       : defaults, file, env, then flags
//   - func RegisterFlags(fs *pflag.FlagSet): declares the supported flags
package config
