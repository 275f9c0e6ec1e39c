// Package config provides configuration loading and validation for rbmap.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/persist"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidShards      = errors.New("tree shards must be positive")
	ErrInvalidMaxSize     = errors.New("tree max size must not be negative")
	ErrInvalidThreshold   = errors.New("hibernation threshold must not be negative")
	ErrInvalidByteSize    = errors.New("invalid byte size")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("log format must be text or json")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
)

// Default configuration values.
const (
	defaultPort                 = 8080
	defaultHost                 = "127.0.0.1"
	defaultShards               = 4
	defaultHibernationThreshold = 4096
	maxPort                     = 65535

	logFormatText = "text"
	logFormatJSON = "json"

	envPrefix = "RBMAP"
)

// Config holds all configuration for rbmap.
type Config struct {
	Tree      TreeConfig      `mapstructure:"tree"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// TreeConfig holds the options applied to every tree the store creates.
type TreeConfig struct {
	MaxSize              int  `mapstructure:"max_size"`
	SelfCheck            bool `mapstructure:"self_check"`
	Shards               int  `mapstructure:"shards"`
	HibernationThreshold int  `mapstructure:"hibernation_threshold"`
}

// StorageConfig holds snapshot settings.
type StorageConfig struct {
	Directory string `mapstructure:"directory"`
	Basename  string `mapstructure:"basename"`
	Codec     string `mapstructure:"codec"`
	Compress  bool   `mapstructure:"compress"`
	// MaxSnapshotSize is a human-readable limit such as "64MB" for snapshot files.
	MaxSnapshotSize string `mapstructure:"max_snapshot_size"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxBodySize caps PUT bodies, e.g. "1MB".
	MaxBodySize string `mapstructure:"max_body_size"`
	Port        int    `mapstructure:"port"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	Prometheus   bool    `mapstructure:"prometheus"`
	DebugTrace   bool    `mapstructure:"debug_trace"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
}

// LoadConfig loads configuration from file and environment variables.
// Environment variables use the RBMAP_ prefix with dots replaced by
// underscores, e.g. RBMAP_SERVER_PORT.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("rbmap")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.rbmap")
		viperCfg.AddConfigPath("/etc/rbmap")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Tree defaults.
	viperCfg.SetDefault("tree.max_size", 0)
	viperCfg.SetDefault("tree.self_check", false)
	viperCfg.SetDefault("tree.shards", defaultShards)
	viperCfg.SetDefault("tree.hibernation_threshold", defaultHibernationThreshold)

	// Storage defaults.
	viperCfg.SetDefault("storage.directory", ".")
	viperCfg.SetDefault("storage.basename", "rbmap")
	viperCfg.SetDefault("storage.codec", "json")
	viperCfg.SetDefault("storage.compress", false)
	viperCfg.SetDefault("storage.max_snapshot_size", "256MB")

	// Server defaults.
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "10s")
	viperCfg.SetDefault("server.write_timeout", "10s")
	viperCfg.SetDefault("server.idle_timeout", "60s")
	viperCfg.SetDefault("server.shutdown_timeout", "15s")
	viperCfg.SetDefault("server.max_body_size", "1MB")

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", logFormatText)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.prometheus", true)
	viperCfg.SetDefault("telemetry.debug_trace", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.environment", "")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Tree.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, config.Tree.Shards)
	}

	if config.Tree.MaxSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxSize, config.Tree.MaxSize)
	}

	if config.Tree.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Tree.HibernationThreshold)
	}

	_, err := config.Storage.SnapshotCodec()
	if err != nil {
		return err
	}

	_, err = config.Storage.SnapshotLimit()
	if err != nil {
		return err
	}

	_, err = config.Server.BodyLimit()
	if err != nil {
		return err
	}

	_, err = config.Logging.SlogLevel()
	if err != nil {
		return err
	}

	if config.Logging.Format != logFormatText && config.Logging.Format != logFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}

// SnapshotCodec resolves the configured codec, with LZ4 framing when Compress is set.
func (s StorageConfig) SnapshotCodec() (persist.Codec, error) {
	codec, err := persist.CodecByName(s.Codec, s.Compress)
	if err != nil {
		return nil, fmt.Errorf("storage codec: %w", err)
	}

	return codec, nil
}

// SnapshotLimit returns MaxSnapshotSize in bytes.
func (s StorageConfig) SnapshotLimit() (uint64, error) {
	return parseByteSize("storage.max_snapshot_size", s.MaxSnapshotSize)
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// BodyLimit returns MaxBodySize in bytes.
func (s ServerConfig) BodyLimit() (uint64, error) {
	return parseByteSize("server.max_body_size", s.MaxBodySize)
}

// SlogLevel parses Level ("debug", "info", "warn", "error").
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(l.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// Observability translates the loaded settings into an observability.Config.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version
	obs.Environment = c.Telemetry.Environment
	obs.Mode = mode
	obs.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	obs.OTLPInsecure = c.Telemetry.OTLPInsecure
	obs.Prometheus = c.Telemetry.Prometheus && mode == observability.ModeServe
	obs.DebugTrace = c.Telemetry.DebugTrace
	obs.SampleRatio = c.Telemetry.SampleRatio
	obs.LogJSON = c.Logging.Format == logFormatJSON

	level, err := c.Logging.SlogLevel()
	if err == nil {
		obs.LogLevel = level
	}

	return obs
}

func parseByteSize(key, raw string) (uint64, error) {
	size, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidByteSize, key, raw)
	}

	return size, nil
}
