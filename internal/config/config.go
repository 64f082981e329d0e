package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/windowio/internal/cache"
	"github.com/objectfs/windowio/internal/metrics"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/reader"
	"github.com/objectfs/windowio/pkg/utils"
	"github.com/objectfs/windowio/pkg/window"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global  GlobalConfig  `yaml:"global"`
	Reader  ReaderConfig  `yaml:"reader"`
	Cache   CacheConfig   `yaml:"cache"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// ReaderConfig represents windowed reader settings
type ReaderConfig struct {
	WindowSize  string `yaml:"window_size"`
	KeepOpen    bool   `yaml:"keep_open"`
	Reclaimable bool   `yaml:"reclaimable"`

	// ReadAhead is the number of windows read past a sequential miss
	ReadAhead int `yaml:"read_ahead"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	Capacity int            `yaml:"capacity"`
	Policy   string         `yaml:"policy"`
	Overflow OverflowConfig `yaml:"overflow"`
}

// OverflowConfig represents the durable overflow tier
type OverflowConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Backend   string `yaml:"backend"`
	Directory string `yaml:"directory"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
			LogFile:  "",
		},
		Reader: ReaderConfig{
			WindowSize:  "4KB",
			KeepOpen:    false,
			Reclaimable: false,
		},
		Cache: CacheConfig{
			Capacity: cache.DefaultCapacity,
			Policy:   string(cache.PolicySpill),
			Overflow: OverflowConfig{
				Enabled:   false,
				Backend:   cache.BackendFile,
				Directory: "",
			},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Address:   ":9108",
			Namespace: "windowio",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("WINDOWIO_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("WINDOWIO_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	// Reader settings
	if val := os.Getenv("WINDOWIO_WINDOW_SIZE"); val != "" {
		c.Reader.WindowSize = val
	}
	if val := os.Getenv("WINDOWIO_KEEP_OPEN"); val != "" {
		c.Reader.KeepOpen = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("WINDOWIO_RECLAIMABLE"); val != "" {
		c.Reader.Reclaimable = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("WINDOWIO_READ_AHEAD"); val != "" {
		ahead, err := strconv.Atoi(val)
		if err != nil {
			return wioerrors.Newf(wioerrors.ErrCodeInvalidConfig, "invalid WINDOWIO_READ_AHEAD %q", val).
				WithComponent("config").
				WithCause(err)
		}
		c.Reader.ReadAhead = ahead
	}

	// Cache settings
	if val := os.Getenv("WINDOWIO_CACHE_CAPACITY"); val != "" {
		capacity, err := strconv.Atoi(val)
		if err != nil {
			return wioerrors.Newf(wioerrors.ErrCodeInvalidConfig, "invalid WINDOWIO_CACHE_CAPACITY %q", val).
				WithComponent("config").
				WithCause(err)
		}
		c.Cache.Capacity = capacity
	}
	if val := os.Getenv("WINDOWIO_CACHE_POLICY"); val != "" {
		c.Cache.Policy = val
	}
	if val := os.Getenv("WINDOWIO_OVERFLOW_ENABLED"); val != "" {
		c.Cache.Overflow.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("WINDOWIO_OVERFLOW_BACKEND"); val != "" {
		c.Cache.Overflow.Backend = val
	}
	if val := os.Getenv("WINDOWIO_OVERFLOW_DIR"); val != "" {
		c.Cache.Overflow.Directory = val
	}

	// Metrics settings
	if val := os.Getenv("WINDOWIO_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("WINDOWIO_METRICS_ADDRESS"); val != "" {
		c.Metrics.Address = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil {
		return invalid("invalid log_level: %s (must be one of: TRACE, DEBUG, INFO, WARN, ERROR)", c.Global.LogLevel)
	}

	if _, err := c.WindowSize(); err != nil {
		return err
	}

	if c.Reader.ReadAhead < 0 {
		return invalid("read_ahead must not be negative")
	}

	if c.Cache.Capacity <= 0 {
		return invalid("cache capacity must be greater than 0")
	}

	switch cache.Policy(c.Cache.Policy) {
	case cache.PolicySpill, cache.PolicyWriteThrough:
	default:
		return invalid("invalid cache policy: %s (must be one of: spill, write_through)", c.Cache.Policy)
	}

	if c.Cache.Overflow.Enabled {
		switch c.Cache.Overflow.Backend {
		case cache.BackendFile, cache.BackendBolt:
		default:
			return invalid("invalid overflow backend: %s (must be one of: file, bolt)", c.Cache.Overflow.Backend)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return invalid("metrics address is required when metrics are enabled")
	}

	return nil
}

// WindowSize returns the parsed reader window size in bytes.
func (c *Configuration) WindowSize() (int, error) {
	size, err := utils.ParseBytes(c.Reader.WindowSize)
	if err != nil {
		return 0, invalid("invalid window_size %q", c.Reader.WindowSize).WithCause(err)
	}
	if size <= 0 || size > math.MaxInt32 {
		return 0, invalid("window_size %q out of range", c.Reader.WindowSize)
	}
	return int(size), nil
}

// NewCache builds the cache described by the configuration: an LRU cache, or a
// two-level cache when the overflow tier is enabled.
func (c *Configuration) NewCache(collector *metrics.Collector) (window.Cache, error) {
	primary := &cache.LRUConfig{Capacity: c.Cache.Capacity}
	if !c.Cache.Overflow.Enabled {
		lru, err := cache.NewLRUCache(primary, collector)
		if err != nil {
			return nil, err
		}
		return lru, nil
	}

	tl, err := cache.NewTwoLevelCache(&cache.TwoLevelConfig{
		Primary: primary,
		Overflow: &cache.OverflowConfig{
			Backend:   c.Cache.Overflow.Backend,
			Directory: c.Cache.Overflow.Directory,
		},
		Policy: cache.Policy(c.Cache.Policy),
	}, collector)
	if err != nil {
		return nil, err
	}
	return tl, nil
}

// NewCollector builds the metrics collector. It returns nil when metrics are disabled.
func (c *Configuration) NewCollector() (*metrics.Collector, error) {
	if !c.Metrics.Enabled {
		return nil, nil
	}
	return metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Address:   c.Metrics.Address,
		Namespace: c.Metrics.Namespace,
	})
}

// ReaderOptions builds reader options with a fresh cache. Each reader needs its own
// options.
func (c *Configuration) ReaderOptions(collector *metrics.Collector) (*reader.Options, error) {
	size, err := c.WindowSize()
	if err != nil {
		return nil, err
	}

	wc, err := c.NewCache(collector)
	if err != nil {
		return nil, err
	}

	var factory window.Factory = window.StrongFactory{}
	if c.Reader.Reclaimable {
		factory = window.ReclaimableFactory{}
	}

	return &reader.Options{
		WindowSize:  size,
		Cache:       wc,
		OverflowDir: c.Cache.Overflow.Directory,
		Factory:     factory,
		KeepOpen:    c.Reader.KeepOpen,
		ReadAhead:   c.Reader.ReadAhead,
		Metrics:     collector,
	}, nil
}

func invalid(format string, args ...interface{}) *wioerrors.WindowIOError {
	return wioerrors.Newf(wioerrors.ErrCodeInvalidConfig, format, args...).WithComponent("config")
}
