package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the configuration of a capture pipeline.
type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	Log     LogConfig     `yaml:"log"`
	Capture CaptureConfig `yaml:"capture"`
}

// PoolConfig sizes the goroutine pool shared by the runners.
type PoolConfig struct {
	Size           int           `yaml:"size"`            // 0 means unbounded
	ExpiryDuration time.Duration `yaml:"expiry_duration"` // idle worker lifetime
	PreAlloc       bool          `yaml:"pre_alloc"`       // bounded pools only
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// CaptureConfig drives the frame capture example pipeline.
type CaptureConfig struct {
	Frames    int    `yaml:"frames"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Quality   int    `yaml:"quality"` // JPEG quality, 1 to 100
	OutputDir string `yaml:"output_dir"`
}

// Default returns a configuration with all default values set.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			ExpiryDuration: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Capture: CaptureConfig{
			Frames:    10,
			Width:     320,
			Height:    240,
			Quality:   90,
			OutputDir: "./frames",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the environment overrides
// STAGEPIPE_POOL_SIZE, STAGEPIPE_LOG_LEVEL and STAGEPIPE_OUTPUT_DIR. An empty path only loads defaults
// and environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("STAGEPIPE_POOL_SIZE"); ok {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: STAGEPIPE_POOL_SIZE=%q: %w", ErrInvalidConfig, v, err)
		}
		c.Pool.Size = size
	}
	if v, ok := os.LookupEnv("STAGEPIPE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("STAGEPIPE_OUTPUT_DIR"); ok {
		c.Capture.OutputDir = v
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Pool.Size < 0 {
		errs = append(errs, fmt.Errorf("pool.size must be >= 0, got %d", c.Pool.Size))
	}
	if c.Pool.PreAlloc && c.Pool.Size == 0 {
		errs = append(errs, errors.New("pool.pre_alloc needs a bounded pool.size"))
	}
	if c.Capture.Frames < 0 {
		errs = append(errs, fmt.Errorf("capture.frames must be >= 0, got %d", c.Capture.Frames))
	}
	if c.Capture.Width <= 0 || c.Capture.Height <= 0 {
		errs = append(errs, fmt.Errorf("capture size must be positive, got %dx%d", c.Capture.Width, c.Capture.Height))
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		errs = append(errs, fmt.Errorf("capture.quality must be in [1, 100], got %d", c.Capture.Quality))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Options returns the ants options matching the pool configuration.
func (p PoolConfig) Options() []ants.Option {
	opts := []ants.Option{ants.WithPreAlloc(p.PreAlloc && p.Size > 0)}
	return append(opts, lo.Ternary(p.ExpiryDuration > 0,
		ants.WithExpiryDuration(p.ExpiryDuration),
		ants.WithDisablePurge(true)))
}
