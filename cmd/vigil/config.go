package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/sampler"
	"github.com/tinytelemetry/vigil/internal/socketrpc"
)

const (
	defaultBindHost            = "127.0.0.1"
	defaultAPIPort             = 3000
	defaultSessionName         = "default"
	defaultInsertBatchSize     = 500
	defaultInsertFlushInterval = time.Second
	defaultLogRetention        = 30 // days, 0 = disabled
	defaultBackupInterval      = 6 * time.Hour
	defaultBackupKeepLast      = 24
	defaultLogLevel            = "info"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Session        string             `mapstructure:"session" yaml:"session"`
	Streams        []string           `mapstructure:"streams" yaml:"streams"`
	LogCapacity    int                `mapstructure:"log-capacity" yaml:"log-capacity"`
	IngestInterval time.Duration      `mapstructure:"ingest-interval" yaml:"ingest-interval"`
	SampleInterval time.Duration      `mapstructure:"sample-interval" yaml:"sample-interval"`
	StreamInterval time.Duration      `mapstructure:"stream-interval" yaml:"stream-interval"`
	FramesMode     sampler.FramesMode `mapstructure:"frames-mode" yaml:"frames-mode"`
	Seed           uint64             `mapstructure:"seed" yaml:"seed"`
	Mode           model.Mode         `mapstructure:"mode" yaml:"mode"`
	AutoStart      bool               `mapstructure:"auto-start" yaml:"auto-start"`

	APIEnabled bool   `mapstructure:"api-enabled" yaml:"api-enabled"`
	APIPort    int    `mapstructure:"api-port" yaml:"api-port"`
	APIAddr    string `mapstructure:"api-addr" yaml:"api-addr"`
	SocketPath string `mapstructure:"socket-path" yaml:"socket-path"`

	ArchiveEnabled      bool          `mapstructure:"archive-enabled" yaml:"archive-enabled"`
	DBPath              string        `mapstructure:"db-path" yaml:"db-path"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size" yaml:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval" yaml:"insert-flush-interval"`
	LogRetention        int           `mapstructure:"log-retention" yaml:"log-retention"`

	BackupEnabled        bool          `mapstructure:"backup-enabled" yaml:"backup-enabled"`
	BackupInterval       time.Duration `mapstructure:"backup-interval" yaml:"backup-interval"`
	BackupLocalDir       string        `mapstructure:"backup-local-dir" yaml:"backup-local-dir"`
	BackupKeepLast       int           `mapstructure:"backup-keep-last" yaml:"backup-keep-last"`
	BackupBucketURL      string        `mapstructure:"backup-bucket-url" yaml:"backup-bucket-url"`
	BackupS3Endpoint     string        `mapstructure:"backup-s3-endpoint" yaml:"backup-s3-endpoint"`
	BackupS3Region       string        `mapstructure:"backup-s3-region" yaml:"backup-s3-region"`
	BackupS3AccessKey    string        `mapstructure:"backup-s3-access-key" yaml:"backup-s3-access-key"`
	BackupS3SecretKey    string        `mapstructure:"backup-s3-secret-key" yaml:"backup-s3-secret-key"`
	BackupS3SessionToken string        `mapstructure:"backup-s3-session-token" yaml:"backup-s3-session-token"`
	BackupS3UseSSL       bool          `mapstructure:"backup-s3-use-ssl" yaml:"backup-s3-use-ssl"`

	LogLevel string `mapstructure:"log-level" yaml:"log-level"`
	LogFile  string `mapstructure:"log-file" yaml:"log-file"`

	ConfigPath string `mapstructure:"-" yaml:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	dataDir := filepath.Join(home, ".local", "share", "vigil")

	v := viper.New()
	v.SetEnvPrefix("VIGIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("session", defaultSessionName)
	v.SetDefault("streams", model.DefaultStreams)
	v.SetDefault("log-capacity", model.DefaultLogCapacity)
	v.SetDefault("ingest-interval", model.DefaultIngestInterval)
	v.SetDefault("sample-interval", model.DefaultSampleInterval)
	v.SetDefault("stream-interval", model.DefaultStreamInterval)
	v.SetDefault("frames-mode", string(sampler.FramesCumulative))
	v.SetDefault("seed", 0)
	v.SetDefault("mode", string(model.ModeTraffic))
	v.SetDefault("auto-start", true)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("archive-enabled", true)
	v.SetDefault("db-path", filepath.Join(dataDir, "vigil.duckdb"))
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("insert-flush-interval", defaultInsertFlushInterval)
	v.SetDefault("log-retention", defaultLogRetention)
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-local-dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)
	v.SetDefault("backup-s3-use-ssl", true)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-file", filepath.Join(home, ".local", "state", "vigil", "vigil.log"))

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
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.BackupLocalDir = expandHome(cfg.BackupLocalDir, home)
	cfg.SocketPath = expandHome(cfg.SocketPath, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *appConfig) validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", c.APIPort)
	}
	if c.IngestInterval <= 0 {
		return fmt.Errorf("invalid ingest-interval: %s", c.IngestInterval)
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("invalid sample-interval: %s", c.SampleInterval)
	}
	if c.StreamInterval <= 0 {
		return fmt.Errorf("invalid stream-interval: %s", c.StreamInterval)
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("invalid log-capacity: %d", c.LogCapacity)
	}
	if len(c.Streams) == 0 {
		return errors.New("streams must not be empty")
	}
	fm, err := sampler.ParseFramesMode(string(c.FramesMode))
	if err != nil {
		return err
	}
	c.FramesMode = fm
	mode, err := model.ParseMode(string(c.Mode))
	if err != nil {
		return err
	}
	c.Mode = mode
	if c.LogRetention < 0 {
		return fmt.Errorf("invalid log-retention: %d", c.LogRetention)
	}
	if c.BackupEnabled && !c.ArchiveEnabled {
		return errors.New("backup-enabled requires archive-enabled")
	}
	return nil
}

// retention converts the configured day count into a duration.
func (c appConfig) retention() time.Duration {
	return time.Duration(c.LogRetention) * 24 * time.Hour
}

// redacted hides credentials before the config is printed.
func (c appConfig) redacted() appConfig {
	if c.BackupS3SecretKey != "" {
		c.BackupS3SecretKey = "********"
	}
	if c.BackupS3SessionToken != "" {
		c.BackupS3SessionToken = "********"
	}
	return c
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
