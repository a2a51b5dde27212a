// Package config loads and validates the jobstream daemon configuration from
// YAML, with environment variable overrides for the common knobs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete daemon configuration.
type Config struct {
	Version string        `yaml:"version" json:"version"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Buffers BuffersConfig `yaml:"buffers" json:"buffers"`
	Stream  StreamConfig  `yaml:"stream" json:"stream"`
	Jobs    JobsConfig    `yaml:"jobs" json:"jobs"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
}

// BuffersConfig bounds per-job history and per-subscriber channel capacity.
type BuffersConfig struct {
	// RingCapacity is the number of recent log events retained per job for
	// replay to late subscribers.
	RingCapacity int `yaml:"ringCapacity" json:"ringCapacity"`
	// SubscriberBuffer is the channel depth between the hub and one
	// subscriber; a full channel drops events for that subscriber only.
	SubscriberBuffer int `yaml:"subscriberBuffer" json:"subscriberBuffer"`
}

// StreamConfig holds live-stream transport settings.
type StreamConfig struct {
	// KeepAlive is the interval between ping control frames per subscriber.
	KeepAlive time.Duration `yaml:"keepAlive" json:"keepAlive"`
}

// JobsConfig holds job lifecycle settings.
type JobsConfig struct {
	// GracePeriod keeps terminal jobs queryable before registry removal.
	GracePeriod time.Duration `yaml:"gracePeriod" json:"gracePeriod"`
	// StopGraceTimeout is how long a canceled process gets after SIGTERM
	// before SIGKILL.
	StopGraceTimeout time.Duration `yaml:"stopGraceTimeout" json:"stopGraceTimeout"`
	// SimulatedDuration is the deadline for the simulated clone workload.
	SimulatedDuration time.Duration `yaml:"simulatedDuration" json:"simulatedDuration"`
	// SimulatedInterval is the tick between simulated progress lines.
	SimulatedInterval time.Duration `yaml:"simulatedInterval" json:"simulatedInterval"`
	// DefaultTargetDir is where simulated clones claim to write.
	DefaultTargetDir string `yaml:"defaultTargetDir" json:"defaultTargetDir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// DefaultConfig provides sensible defaults for all settings.
var DefaultConfig = Config{
	Version: "1.0",
	Server: ServerConfig{
		Address:         "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	},
	Buffers: BuffersConfig{
		RingCapacity:     2000,
		SubscriberBuffer: 256,
	},
	Stream: StreamConfig{
		KeepAlive: 25 * time.Second,
	},
	Jobs: JobsConfig{
		GracePeriod:       30 * time.Second,
		StopGraceTimeout:  5 * time.Second,
		SimulatedDuration: 2 * time.Minute,
		SimulatedInterval: 900 * time.Millisecond,
		DefaultTargetDir:  "/tmp/jobstream",
	},
	Logging: LoggingConfig{
		Level:  "INFO",
		Format: "text",
		Output: "stdout",
	},
}

// GetServerAddress returns the host:port the HTTP server binds to.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// LoadConfig loads configuration from the first available YAML file, applies
// environment overrides, and validates the result. The returned string names
// the source used ("built-in defaults" when no file was found).
func LoadConfig() (*Config, string, error) {
	config := DefaultConfig

	path, err := loadFromFile(&config)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	if val := os.Getenv("JOBSTREAM_SERVER_ADDRESS"); val != "" {
		config.Server.Address = val
	}
	if val := os.Getenv("JOBSTREAM_SERVER_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return nil, "", fmt.Errorf("invalid JOBSTREAM_SERVER_PORT: %w", err)
		}
		config.Server.Port = port
	}
	if val := os.Getenv("JOBSTREAM_LOG_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("JOBSTREAM_LOG_FORMAT"); val != "" {
		config.Logging.Format = val
	}

	if e := config.Validate(); e != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", e)
	}

	return &config, path, nil
}

// loadFromFile loads configuration from the first file found in the search
// path. Missing files are not an error; defaults apply.
func loadFromFile(config *Config) (string, error) {
	configPaths := []string{
		os.Getenv("JOBSTREAM_CONFIG_PATH"),
		"./jobstream-config.yml",
		"./config/jobstream-config.yml",
		"/etc/jobstream/jobstream-config.yml",
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("failed to parse config file %s: %w", path, err)
		}

		return path, nil
	}

	return "built-in defaults (no config file found)", nil
}

// Validate checks all configuration sections and returns the first problem
// found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Buffers.RingCapacity < 1 {
		return fmt.Errorf("invalid ring capacity: %d", c.Buffers.RingCapacity)
	}

	if c.Buffers.SubscriberBuffer < 1 {
		return fmt.Errorf("invalid subscriber buffer: %d", c.Buffers.SubscriberBuffer)
	}

	if c.Stream.KeepAlive <= 0 {
		return fmt.Errorf("invalid stream keep-alive interval: %v", c.Stream.KeepAlive)
	}

	if c.Jobs.GracePeriod < 0 {
		return fmt.Errorf("invalid job grace period: %v", c.Jobs.GracePeriod)
	}

	if c.Jobs.StopGraceTimeout <= 0 {
		return fmt.Errorf("invalid stop grace timeout: %v", c.Jobs.StopGraceTimeout)
	}

	if c.Jobs.SimulatedDuration <= 0 || c.Jobs.SimulatedInterval <= 0 {
		return fmt.Errorf("invalid simulated workload timing: duration=%v interval=%v",
			c.Jobs.SimulatedDuration, c.Jobs.SimulatedInterval)
	}

	validLevels := map[string]bool{
		"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}
