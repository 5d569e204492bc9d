package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophdiary/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for decoding config files. Pointer
// fields distinguish "absent" from zero values, so a file only overrides what
// it mentions.
type FileConfig struct {
	StoreDriver       *string         `json:"store_driver" yaml:"store_driver"`
	DatabaseDSN       *string         `json:"database_dsn" yaml:"database_dsn"`
	PlatformDSN       *string         `json:"platform_dsn" yaml:"platform_dsn"`
	Zone              *string         `json:"zone" yaml:"zone"`
	Horizon           *int            `json:"horizon" yaml:"horizon"`
	MaxAttempts       *int            `json:"max_attempts" yaml:"max_attempts"`
	ChannelID         *string         `json:"channel_id" yaml:"channel_id"`
	ChannelName       *string         `json:"channel_name" yaml:"channel_name"`
	SettleDelay       *timex.Duration `json:"settle_delay" yaml:"settle_delay"`
	CallTimeout       *timex.Duration `json:"call_timeout" yaml:"call_timeout"`
	PollInterval      *timex.Duration `json:"poll_interval" yaml:"poll_interval"`
	ResyncConcurrency *int            `json:"resync_concurrency" yaml:"resync_concurrency"`
	LogLevel          *string         `json:"log_level" yaml:"log_level"`
	LogFormat         *string         `json:"log_format" yaml:"log_format"`
}

// parseFile overlays cfg with the values found in the file at path.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setIf(&cfg.StoreDriver, fc.StoreDriver)
	setIf(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setIf(&cfg.PlatformDSN, fc.PlatformDSN)
	setIf(&cfg.Zone, fc.Zone)
	setIf(&cfg.Horizon, fc.Horizon)
	setIf(&cfg.MaxAttempts, fc.MaxAttempts)
	setIf(&cfg.ChannelID, fc.ChannelID)
	setIf(&cfg.ChannelName, fc.ChannelName)
	setIf(&cfg.ResyncConcurrency, fc.ResyncConcurrency)
	setIf(&cfg.LogLevel, fc.LogLevel)
	setIf(&cfg.LogFormat, fc.LogFormat)
	if fc.SettleDelay != nil {
		cfg.SettleDelay = fc.SettleDelay.Duration
	}
	if fc.CallTimeout != nil {
		cfg.CallTimeout = fc.CallTimeout.Duration
	}
	if fc.PollInterval != nil {
		cfg.PollInterval = fc.PollInterval.Duration
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
