package hfsm

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPollInterval is how long the active worker waits for an event
	// before re-checking whether it was terminated
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultJoinTimeout bounds how long Terminate waits for the worker
	DefaultJoinTimeout = 5 * time.Second
)

// Config is the file-loadable part of the machine and driver settings
type Config struct {
	Name         string        `yaml:"name"`
	PollInterval time.Duration `yaml:"pollInterval"`
	JoinTimeout  time.Duration `yaml:"joinTimeout"`
	LogLevel     string        `yaml:"logLevel"`
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		JoinTimeout:  DefaultJoinTimeout,
	}
}

// LoadConfig parses a YAML document on top of DefaultConfig
func LoadConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return Config{}, NewConfigurationError("config", "pollInterval must be positive")
	}
	if cfg.JoinTimeout <= 0 {
		return Config{}, NewConfigurationError("config", "joinTimeout must be positive")
	}
	if cfg.LogLevel != "" {
		if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
			return Config{}, NewConfigurationError("config", err.Error())
		}
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a YAML config file
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return LoadConfig(data)
}

// Option configures a machine or a driver
type Option func(*options)

type options struct {
	ctx          context.Context
	logger       logrus.FieldLogger
	name         string
	pollInterval time.Duration
	joinTimeout  time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{
		ctx:          context.Background(),
		logger:       discardLogger(),
		pollInterval: DefaultPollInterval,
		joinTimeout:  DefaultJoinTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used by the machine and its driver
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithContext sets the context embedded in every execution Context
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithName overrides the definition name used in logs and reports
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithPollInterval sets how often the active worker re-checks for termination
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithJoinTimeout bounds how long Terminate waits for the active worker
func WithJoinTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.joinTimeout = d
		}
	}
}

// WithConfig applies a loaded Config. A non-empty LogLevel installs a logrus
// logger writing to stderr at that level.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.Name != "" {
			o.name = cfg.Name
		}
		if cfg.PollInterval > 0 {
			o.pollInterval = cfg.PollInterval
		}
		if cfg.JoinTimeout > 0 {
			o.joinTimeout = cfg.JoinTimeout
		}
		if cfg.LogLevel != "" {
			if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
				logger := logrus.New()
				logger.SetLevel(level)
				o.logger = logger
			}
		}
	}
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
