package app

import (
	"errors"

	"github.com/caarlos0/env/v6"
)

// Config holds everything an App instance needs to run. Environment
// variables provide the defaults; CLI flags override them.
type Config struct {
	// DefinitionsPath points to a .hcl pipeline file or a directory of
	// them.
	DefinitionsPath string `env:"FORGEPIPE_DEFINITIONS"`

	// PipelineName optionally selects a single pipeline to execute. Empty
	// runs every loaded pipeline in file order.
	PipelineName string `env:"FORGEPIPE_PIPELINE"`

	LogFormat string `env:"FORGEPIPE_LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"FORGEPIPE_LOG_LEVEL" envDefault:"info"`
}

// FromEnv builds a Config from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfig validates a fully assembled Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.DefinitionsPath == "" {
		return nil, errors.New("DefinitionsPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
