package s3

import (
	"time"

	"github.com/objectfs/windowio/pkg/retry"
)

// Config represents S3 object source configuration
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Performance settings
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Retry covers range requests whose body was cut short or whose failure the
	// SDK retryer did not absorb
	Retry retry.Config `yaml:"retry"`

	// Advanced settings
	UseAccelerate bool `yaml:"use_accelerate"`
	UseDualStack  bool `yaml:"use_dual_stack"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:     3,
		RequestTimeout: 30 * time.Second,
		Retry:          retry.DefaultConfig(),
	}
}
