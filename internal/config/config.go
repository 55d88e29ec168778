package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/qri-io/xcollection/zarr"
	"github.com/qri-io/xcollection/zarr/minio"
	"github.com/qri-io/xcollection/zarr/s3"
)

// Store kinds
const (
	KindLocal  = "local"
	KindMemory = "memory"
	KindMinio  = "minio"
	KindS3     = "s3"
)

// Environment variables that override file settings.
const (
	EnvLogLevel  = "XCOLLECTION_LOG_LEVEL"
	EnvAccessKey = "XCOLLECTION_ACCESS_KEY"
	EnvSecretKey = "XCOLLECTION_SECRET_KEY"
)

// Config holds the xcollection CLI configuration.
type Config struct {
	// Stores are named zarr stores commands can refer to instead of a path.
	Stores map[string]StoreConfig `yaml:"stores"`

	// Write settings for archives the CLI produces
	Write WriteConfig `yaml:"write"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig describes how to reach one zarr store.
type StoreConfig struct {
	Kind string `yaml:"kind"` // local, memory, minio, s3

	// local
	Path string `yaml:"path,omitempty"`

	// minio and s3
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
}

// WriteConfig controls how archives are written.
type WriteConfig struct {
	Compressor   string         `yaml:"compressor"` // zstd, gzip, zlib, lz4, none
	Level        int            `yaml:"level"`
	Consolidated bool           `yaml:"consolidated"`
	Chunks       map[string]int `yaml:"chunks,omitempty"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Stores: map[string]StoreConfig{},
		Write: WriteConfig{
			Compressor:   zarr.CodecZstd,
			Level:        1,
			Consolidated: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Stores == nil {
		cfg.Stores = map[string]StoreConfig{}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	access, secret := os.Getenv(EnvAccessKey), os.Getenv(EnvSecretKey)
	for name, s := range c.Stores {
		if s.AccessKey == "" && access != "" {
			s.AccessKey = access
		}
		if s.SecretKey == "" && secret != "" {
			s.SecretKey = secret
		}
		c.Stores[name] = s
	}
}

// Validate checks every store and the write settings.
func (c *Config) Validate() error {
	for name, s := range c.Stores {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("store %q: %w", name, err)
		}
	}
	if _, err := c.Write.CompressionMeta(); err != nil {
		return err
	}
	for d, n := range c.Write.Chunks {
		if n < 1 {
			return fmt.Errorf("chunk size for %q must be positive, got %d", d, n)
		}
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}
	return lvl, nil
}

// Validate checks the fields the store kind needs.
func (s StoreConfig) Validate() error {
	switch s.Kind {
	case KindLocal:
		if s.Path == "" {
			return fmt.Errorf("local store needs a path")
		}
	case KindMemory:
	case KindMinio:
		if s.Endpoint == "" || s.Bucket == "" {
			return fmt.Errorf("minio store needs an endpoint and a bucket")
		}
	case KindS3:
		if s.Bucket == "" {
			return fmt.Errorf("s3 store needs a bucket")
		}
	default:
		return fmt.Errorf("unknown store kind %q", s.Kind)
	}
	return nil
}

// Open connects to the store.
func (s StoreConfig) Open(ctx context.Context) (zarr.Store, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case KindLocal:
		return zarr.NewLocalStore(s.Path)
	case KindMemory:
		return zarr.NewMemoryStore(), nil
	case KindMinio:
		return minio.Dial(ctx, s.Endpoint, s.AccessKey, s.SecretKey, s.Secure, s.Bucket, s.Prefix)
	default:
		return s3.New(ctx, s.Bucket, s.Prefix, s.Region)
	}
}

// ResolveStore opens the configured store called ref, or treats ref as a
// local directory when no store has that name. A "memory" reference needs
// a configured store.
func (c *Config) ResolveStore(ctx context.Context, ref string) (zarr.Store, error) {
	if s, ok := c.Stores[ref]; ok {
		return s.Open(ctx)
	}
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("empty store reference")
	}
	return zarr.NewLocalStore(ref)
}

// OpenStore resolves ref like ResolveStore for reading. A local directory
// that does not exist is an error wrapping zarr.ErrNotfound rather than
// being created.
func (c *Config) OpenStore(ctx context.Context, ref string) (zarr.Store, error) {
	path := ref
	if s, ok := c.Stores[ref]; ok {
		if s.Kind != KindLocal {
			return s.Open(ctx)
		}
		path = s.Path
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty store reference")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store %q: %w", ref, zarr.ErrNotfound)
		}
		return nil, err
	}
	return zarr.NewLocalStore(path)
}

// CompressionMeta returns the codec archives are written with, or nil for
// "none".
func (w WriteConfig) CompressionMeta() (*zarr.CompressionMeta, error) {
	switch w.Compressor {
	case "none":
		return nil, nil
	case "", zarr.CodecZstd:
		level := w.Level
		if level == 0 {
			level = 1
		}
		return &zarr.CompressionMeta{ID: zarr.CodecZstd, Level: level}, nil
	case zarr.CodecGzip, zarr.CodecZlib:
		if w.Level < 0 || w.Level > 9 {
			return nil, fmt.Errorf("%s level must be between 0 and 9, got %d", w.Compressor, w.Level)
		}
		return &zarr.CompressionMeta{ID: w.Compressor, Level: w.Level}, nil
	case zarr.CodecLZ4:
		return &zarr.CompressionMeta{ID: zarr.CodecLZ4, Acceleration: 1}, nil
	}
	return nil, fmt.Errorf("unsupported compressor %q", w.Compressor)
}
