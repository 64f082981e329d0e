/*
Package config loads windowio settings from YAML files and the environment.

Sources are applied in order, later ones overriding earlier ones:

	┌─────────────────────────────────────────────┐
	│        Command line flags (winread)         │ ← Highest Priority
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│        Environment Variables                │
	│           (WINDOWIO_*)                      │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File (YAML)           │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Example

	global:
	  log_level: INFO
	reader:
	  window_size: 64KB
	  reclaimable: true
	  read_ahead: 4
	cache:
	  capacity: 64
	  policy: spill
	  overflow:
	    enabled: true
	    backend: bolt
	    directory: /var/tmp/windowio
	metrics:
	  enabled: true
	  address: ":9108"

# Environment Variables

	WINDOWIO_LOG_LEVEL          global.log_level
	WINDOWIO_LOG_FILE           global.log_file
	WINDOWIO_WINDOW_SIZE        reader.window_size
	WINDOWIO_KEEP_OPEN          reader.keep_open
	WINDOWIO_RECLAIMABLE        reader.reclaimable
	WINDOWIO_READ_AHEAD         reader.read_ahead
	WINDOWIO_CACHE_CAPACITY     cache.capacity
	WINDOWIO_CACHE_POLICY       cache.policy
	WINDOWIO_OVERFLOW_ENABLED   cache.overflow.enabled
	WINDOWIO_OVERFLOW_BACKEND   cache.overflow.backend
	WINDOWIO_OVERFLOW_DIR       cache.overflow.directory
	WINDOWIO_METRICS_ENABLED    metrics.enabled
	WINDOWIO_METRICS_ADDRESS    metrics.address

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("windowio.yaml"); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts, err := cfg.ReaderOptions(nil)
	if err != nil {
		return err
	}
	r, err := reader.NewFileReader("disk.img", opts)

Validation failures are INVALID_CONFIG errors from pkg/errors.
*/
package config
