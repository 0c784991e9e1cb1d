package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// serveConfig is the configuration of the serve daemon, merged from defaults,
// an optional config file, WARDMON_* environment variables and flags, in
// ascending priority.
type serveConfig struct {
	ConfigDir   string        `mapstructure:"config-dir"`
	MessagesDir string        `mapstructure:"messages-dir"`
	Journal     string        `mapstructure:"journal"`
	LogLevel    string        `mapstructure:"log-level"`
	LogFile     string        `mapstructure:"log-file"`
	StopTimeout time.Duration `mapstructure:"stop-timeout"`
}

func loadServeConfig(cfgFile string, flags *pflag.FlagSet) (*serveConfig, error) {
	v := viper.New()

	var base string
	if dir, err := os.UserConfigDir(); err == nil {
		base = filepath.Join(dir, "wardmon")
	}

	v.SetDefault("config-dir", filepath.Join(base, "config"))
	v.SetDefault("messages-dir", filepath.Join(base, "messages"))
	v.SetDefault("journal", filepath.Join(base, "journal.json"))
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")
	v.SetDefault("stop-timeout", time.Minute)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	v.SetEnvPrefix("WARDMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.Wrap(err, "failed to bind flags")
		}
	}

	var cfg serveConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	switch {
	case cfg.ConfigDir == "":
		return nil, errors.New("config-dir must be set")
	case cfg.MessagesDir == "":
		return nil, errors.New("messages-dir must be set")
	case cfg.Journal == "":
		return nil, errors.New("journal must be set")
	}

	return &cfg, nil
}
