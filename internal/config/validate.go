package config

import "fmt"

// Validate performs business-rule validation on the loaded
// configuration. Load calls it automatically.
func (c *Config) Validate() error {
	switch c.Experiment.Kind {
	case "default", "bootstrapping":
	default:
		return fmt.Errorf("experiment.kind must be \"default\" or \"bootstrapping\" (got %q)", c.Experiment.Kind)
	}

	switch c.WSI.Backend {
	case "hca", "hdp":
	default:
		return fmt.Errorf("wsi.backend must be \"hca\" or \"hdp\" (got %q)", c.WSI.Backend)
	}

	if c.Experiment.Workers < 1 {
		return fmt.Errorf("experiment.workers must be >= 1 (got %d)", c.Experiment.Workers)
	}
	if c.Experiment.BootstrapSize < 1 {
		return fmt.Errorf("experiment.bootstrap_size must be >= 1 (got %d)", c.Experiment.BootstrapSize)
	}
	if c.WSI.RetryBackoff <= 0 {
		return fmt.Errorf("wsi.retry_backoff must be positive (got %v)", c.WSI.RetryBackoff)
	}

	return nil
}
