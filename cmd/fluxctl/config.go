// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// config is the resolved fluxctl configuration. Flags take precedence over
// FLUXCTL_* environment variables, which take precedence over the config file.
type config struct {
	Backend      string `mapstructure:"backend"`
	Dir          string `mapstructure:"dir"`
	DB           string `mapstructure:"db"`
	Codec        string `mapstructure:"codec"`
	LogLevel     string `mapstructure:"log-level"`
	LogFormat    string `mapstructure:"log-format"`
	OTelEndpoint string `mapstructure:"otel-endpoint"`
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "fluxctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "fluxctl")
	}
	return filepath.Join(home, ".local", "share", "fluxctl")
}

func registerFlags(flags *pflag.FlagSet) {
	flags.String("backend", "file", "Storage backend: file|sqlite")
	flags.String("dir", filepath.Join(dataDir(), "cells"), "Directory of the file backend")
	flags.String("db", filepath.Join(dataDir(), "cells.db"), "Database path of the sqlite backend")
	flags.String("codec", "json", "Value codec: json|yaml|msgpack")
	flags.String("log-level", "warn", "Log level: debug|info|warn|error")
	flags.String("log-format", "text", "Log format: text|json")
	flags.String("otel-endpoint", "", "OTLP/HTTP endpoint for traces; empty disables tracing")
	flags.String("config", "", "Config file (default $HOME/.config/fluxctl/config.yaml)")
}

// loadConfig resolves the configuration for flags.
func loadConfig(flags *pflag.FlagSet) (config, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return config{}, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("FLUXCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfgPath := v.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "fluxctl"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	switch c.Backend {
	case "file", "sqlite":
	default:
		return config{}, fmt.Errorf("unknown backend %q", c.Backend)
	}
	return c, nil
}
