// Package config provides YAML-based configuration loading with environment
// variable expansion and prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	envPrefix    string
	allowMissing bool
}

// WithEnvPrefix enables environment overrides. A variable named
// <prefix>APP__HTTP__PORT sets the key app.http.port; keys follow the yaml
// struct tags.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// AllowMissing makes a missing config file keep the target's current values
// instead of failing.
func AllowMissing() LoadOption {
	return func(o *loadOptions) {
		o.allowMissing = true
	}
}

// Load loads configuration from a YAML file with environment variable
// expansion, applies environment overrides and validates the result.
func Load[T any](filename string, target *T, opts ...LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	case o.allowMissing && errors.Is(err, os.ErrNotExist):
	default:
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if o.envPrefix != "" {
		if err := applyEnv(o.envPrefix, target); err != nil {
			return err
		}
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// applyEnv overlays prefixed environment variables onto target. Fields not
// named by any variable keep their value.
func applyEnv(prefix string, target any) error {
	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        prefix,
		TransformFunc: envKey(prefix),
	}), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}
	return nil
}

func envKey(prefix string) func(k, v string) (string, any) {
	return func(k, v string) (string, any) {
		k = strings.ToLower(strings.TrimPrefix(k, prefix))
		return strings.ReplaceAll(k, "__", "."), v
	}
}

// LoadWithDefaults loads configuration with fallback to a default file.
func LoadWithDefaults[T any](filename, defaultFile string, target *T, opts ...LoadOption) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		if defaultFile != "" {
			return Load(defaultFile, target, opts...)
		}
		return fmt.Errorf("config file not found: %s", filename)
	}
	return Load(filename, target, opts...)
}

// MustLoad loads configuration and panics on failure.
func MustLoad[T any](filename string, target *T, opts ...LoadOption) {
	if err := Load(filename, target, opts...); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
}
