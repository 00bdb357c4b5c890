// Package config loads syncbridge configuration from defaults, an optional
// YAML file and SYNCBRIDGE_ environment variables, in increasing priority.
//
// Environment keys drop the prefix, are lowercased, and use a double
// underscore between nesting levels:
//
//	SYNCBRIDGE_UPSTREAMS__BUDGET__BASE_URL -> upstreams.budget.base_url
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix of every environment variable read by Load.
	EnvPrefix = "SYNCBRIDGE_"

	// DefaultPath is read by Load when no path is given. Its absence is not an error.
	DefaultPath = "config.yaml"

	envLevelSeparator = "__"
)

// Load reads defaults, then the YAML file at path, then the environment.
// An empty path means DefaultPath; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFile(k, path); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return unmarshal(k)
}

// LoadFromBytes reads defaults and then the YAML document in data.
// The environment is not consulted.
func LoadFromBytes(data []byte) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(bytes.TrimSpace(data)) > 0 {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return unmarshal(k)
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "syncbridge",
		"app.version": "v0.1.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":      false,
		"observability.service.name": "syncbridge",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// envKey maps SYNCBRIDGE_A__B_C to a.b_c.
func envKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, envLevelSeparator, "."), value
}

// EnvVarFor returns the environment variable that overrides a dotted config
// field. Map indexes such as upstreams[budget] become nesting levels.
func EnvVarFor(field string) string {
	r := strings.NewReplacer("[", ".", "]", "")
	parts := strings.Split(r.Replace(field), ".")
	return EnvPrefix + strings.ToUpper(strings.Join(parts, envLevelSeparator))
}
