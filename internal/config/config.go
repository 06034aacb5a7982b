package config

import (
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reactor.yaml"

	// DefaultInspectorAddr is the default inspector listen address.
	DefaultInspectorAddr = "localhost:7070"

	// DefaultTimelineCapacity is the default number of retained events.
	DefaultTimelineCapacity = 4096

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "reactor"

	// DefaultS3Prefix is the default key prefix of the S3 store.
	DefaultS3Prefix = "timelines/"

	// DefaultRedisPrefix is the default key prefix of the Redis store.
	DefaultRedisPrefix = "reactor:timeline:"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreS3     = "s3"
	StoreRedis  = "redis"
)

// Config represents the complete reactor.yaml configuration.
type Config struct {
	// Runtime configures the reactive runtime.
	Runtime RuntimeConfig `yaml:"runtime"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Timeline configures the event recorder.
	Timeline TimelineConfig `yaml:"timeline"`

	// Inspector configures the HTTP inspector.
	Inspector InspectorConfig `yaml:"inspector"`

	// Metrics configures the Prometheus exporter.
	Metrics MetricsConfig `yaml:"metrics"`

	// Store selects where timelines are persisted.
	Store StoreConfig `yaml:"store"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RuntimeConfig mirrors reactive.Config.
type RuntimeConfig struct {
	// Sync flushes the update queue synchronously on every notification.
	Sync bool `yaml:"sync,omitempty"`

	// Silent suppresses warnings.
	Silent bool `yaml:"silent,omitempty"`

	// Production disables development-only checks.
	Production bool `yaml:"production,omitempty"`

	// MaxUpdateCount is the runaway update limit per watcher and flush.
	MaxUpdateCount int `yaml:"maxUpdateCount,omitempty"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

// TimelineConfig contains recorder settings.
type TimelineConfig struct {
	// Capacity is the number of retained events.
	Capacity int `yaml:"capacity,omitempty"`
}

// InspectorConfig contains inspector server settings.
type InspectorConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Namespace prefixes metric names.
	Namespace string `yaml:"namespace,omitempty"`

	// Subsystem is inserted between namespace and name.
	Subsystem string `yaml:"subsystem,omitempty"`
}

// StoreConfig selects and configures the timeline store.
type StoreConfig struct {
	// Kind is memory, s3 or redis.
	Kind string `yaml:"kind,omitempty"`

	S3    S3Config    `yaml:"s3,omitempty"`
	Redis RedisConfig `yaml:"redis,omitempty"`
}

// S3Config configures the S3 store. Credentials come from the environment.
type S3Config struct {
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`

	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string `yaml:"endpoint,omitempty"`

	// PathStyle forces path-style addressing.
	PathStyle bool `yaml:"pathStyle,omitempty"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`

	// TTL expires stored timelines (e.g., "24h"). Empty keeps them forever.
	TTL string `yaml:"ttl,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads reactor.yaml from the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigNotFound).
				WithSubject(path).
				WithSuggestion("Create " + ConfigFileName + " or omit --config to use defaults")
		}
		return nil, errors.New(errors.CodeConfigInvalid).WithSubject(path).Wrap(err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// Parse decodes and validates a reactor.yaml document. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid YAML")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New(errors.CodeConfigInvalid).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigInvalid).WithSubject(path).Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Runtime.MaxUpdateCount == 0 {
		c.Runtime.MaxUpdateCount = reactive.DefaultMaxUpdateCount
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Timeline.Capacity == 0 {
		c.Timeline.Capacity = DefaultTimelineCapacity
	}
	if c.Inspector.Addr == "" {
		c.Inspector.Addr = DefaultInspectorAddr
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
	}
	if c.Store.S3.Prefix == "" {
		c.Store.S3.Prefix = DefaultS3Prefix
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = DefaultRedisPrefix
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Runtime.MaxUpdateCount < 0 {
		return errors.New(errors.CodeMaxUpdateCount).
			WithSubject(strconv.Itoa(c.Runtime.MaxUpdateCount))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New(errors.CodeLogLevel).
			WithSubject("format " + strconv.Quote(c.Log.Format)).
			WithSuggestion("Use text or json")
	}

	if c.Timeline.Capacity < 0 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("timeline.capacity must not be negative")
	}

	if _, port, err := net.SplitHostPort(c.Inspector.Addr); err != nil {
		return errors.New(errors.CodeInspectorAddr).WithSubject(c.Inspector.Addr).Wrap(err)
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return errors.New(errors.CodeInspectorAddr).
			WithSubject(c.Inspector.Addr).
			WithDetail("Port must be between 0 and 65535")
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreS3:
		if c.Store.S3.Bucket == "" {
			return errors.New(errors.CodeMissingBucket).
				WithExample("store:\n  kind: s3\n  s3:\n    bucket: my-timelines")
		}
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New(errors.CodeMissingRedisAddr).
				WithExample("store:\n  kind: redis\n  redis:\n    addr: localhost:6379")
		}
		if _, err := c.Store.Redis.TTLDuration(); err != nil {
			return errors.New(errors.CodeConfigInvalid).
				WithSubject("store.redis.ttl " + strconv.Quote(c.Store.Redis.TTL)).
				Wrap(err)
		}
	default:
		return errors.New(errors.CodeUnknownStore).WithSubject(strconv.Quote(c.Store.Kind))
	}
	return nil
}

// TTLDuration parses TTL. An empty TTL is zero.
func (r RedisConfig) TTLDuration() (time.Duration, error) {
	if r.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(r.TTL)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Newf(errors.CategoryConfig, "negative ttl %s", r.TTL)
	}
	return d, nil
}

// RuntimeOptions translates the runtime section into reactive options.
func (c *Config) RuntimeOptions() []reactive.Option {
	return []reactive.Option{
		reactive.WithAsync(!c.Runtime.Sync),
		reactive.WithSilent(c.Runtime.Silent),
		reactive.WithProduction(c.Runtime.Production),
		reactive.WithMaxUpdateCount(c.Runtime.MaxUpdateCount),
	}
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New(errors.CodeLogLevel).
			WithSubject(strconv.Quote(s)).
			WithSuggestion("Use debug, info, warn or error")
	}
	return level, nil
}

// NewLogger creates the process logger described by the log section.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find the one holding reactor.yaml.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New(errors.CodeConfigNotFound).
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest reactor.yaml above the working
// directory, or returns defaults when there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}
	return Load(root)
}
