package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings that may be overridden by an optional
// velox.yaml file in the working directory. Zero values fall back to the
// package constants.
type Config struct {
	// DefaultRegisterCount overrides the outermost frame's register file size
	DefaultRegisterCount int `yaml:"defaultRegisterCount"`

	// MaxFrames overrides the call stack depth limit
	MaxFrames int `yaml:"maxFrames"`

	// DAPPort is the TCP port for --dap remote serving
	DAPPort int `yaml:"dapPort"`

	// Verbosity is the commonlog verbosity level (0 = quiet)
	Verbosity int `yaml:"verbosity"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultRegisterCount: DefaultRegisterCount,
		MaxFrames:            MaxFrameCount,
		DAPPort:              DefaultDAPPort,
	}
}

// Load reads a YAML configuration file and merges it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.DefaultRegisterCount <= 0 || cfg.DefaultRegisterCount > 256 {
		cfg.DefaultRegisterCount = DefaultRegisterCount
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = MaxFrameCount
	}
	if cfg.DAPPort <= 0 {
		cfg.DAPPort = DefaultDAPPort
	}
	return cfg, nil
}

// Discover loads ConfigFileName from the working directory if present,
// otherwise returns the defaults.
func Discover() *Config {
	cfg, err := Load(ConfigFileName)
	if err != nil {
		return Default()
	}
	return cfg
}
