package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/socketrpc"
	"github.com/tinytelemetry/vigil/internal/tui"
)

// cliConfig holds only TUI-relevant configuration.
type cliConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	SocketPath      string        `mapstructure:"socket-path"`
	ExportDir       string        `mapstructure:"export-dir"`
	Streams         []string      `mapstructure:"streams"`
	LogCapacity     int           `mapstructure:"log-capacity"`
	IngestInterval  time.Duration `mapstructure:"ingest-interval"`
	SampleInterval  time.Duration `mapstructure:"sample-interval"`
	StreamInterval  time.Duration `mapstructure:"stream-interval"`
	Seed            uint64        `mapstructure:"seed"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("refresh-interval", tui.DefaultRefreshInterval)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("export-dir", ".")
	v.SetDefault("streams", model.DefaultStreams)
	v.SetDefault("log-capacity", model.DefaultLogCapacity)
	v.SetDefault("ingest-interval", model.DefaultIngestInterval)
	v.SetDefault("sample-interval", model.DefaultSampleInterval)
	v.SetDefault("stream-interval", model.DefaultStreamInterval)
	v.SetDefault("seed", 0)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "vigil", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if cfg.RefreshInterval <= 0 {
		return cfg, fmt.Errorf("invalid refresh-interval: %s", cfg.RefreshInterval)
	}

	return cfg, nil
}
