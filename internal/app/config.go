package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ManifestPath string // .hcl manifest file or directory

	Action string // empty means describe mode
	Target string
	Where  map[string]string

	ContinueOnError bool
	LogFormat       string
	LogLevel        string
}

// NewConfig validates a configuration.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ManifestPath == "" {
		return nil, errors.New("ManifestPath is a required configuration field and cannot be empty")
	}
	if cfg.Action != "" && cfg.Target == "" {
		return nil, errors.New("an action requires a target data name")
	}
	return &cfg, nil
}
