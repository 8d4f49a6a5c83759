package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cryguy/jsbridge"
)

// Config is the YAML configuration file. ${VAR} references are expanded
// from the environment before parsing.
type Config struct {
	Engine           string `yaml:"engine"`
	MemoryLimitMB    int    `yaml:"memory_limit_mb"`
	ExecutionTimeout int    `yaml:"execution_timeout_ms"`
	MaxDepth         int    `yaml:"max_depth"`
	MaxArrayLength   int    `yaml:"max_array_length"`
	Loader           string `yaml:"loader"`
	Scripts          string `yaml:"scripts"` // directory script names are resolved against
	DB               string `yaml:"db"`      // unit store path
	Listen           string `yaml:"listen"`
	MaxConns         int    `yaml:"max_conns"`
	LogLevel         string `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Scripts:  ".",
		DB:       "jsbridge.db",
		Listen:   "127.0.0.1:7341",
		MaxConns: 64,
		LogLevel: "info",
	}
}

// LoadConfig reads path over the defaults. An empty path yields the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is an operator-provided flag
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// EngineConfig maps the file settings onto a session configuration.
func (c Config) EngineConfig(sink jsbridge.Sink) jsbridge.EngineConfig {
	return jsbridge.EngineConfig{
		Engine:           c.Engine,
		MemoryLimitMB:    c.MemoryLimitMB,
		ExecutionTimeout: c.ExecutionTimeout,
		MaxDepth:         c.MaxDepth,
		MaxArrayLength:   c.MaxArrayLength,
		Loader:           c.Loader,
		Sink:             sink,
	}
}

// Level parses LogLevel, falling back to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
