package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/natefinch/atomic"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "FILESERVER"

// Load builds a Config from defaults, an optional YAML file, the environment
// and flags, then validates it.
//
// defaults supplies the lowest precedence values (NewConfig when nil).
// configPath may be empty; a named file that does not exist is an error.
// flags may be nil; only flags the user actually set override the other
// sources.
func Load(configPath string, flags *pflag.FlagSet, defaults *Config) (*Config, error) {
	if defaults == nil {
		defaults = NewConfig()
	}

	v := viper.New()
	if err := setupViper(v, defaults); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setupViper registers every option of defaults as a viper default and turns
// on environment lookups
func setupViper(v *viper.Viper, defaults *Config) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// encode through the mapstructure tags so keys match the flag names
	var m map[string]any
	if err := mapstructure.Decode(defaults, &m); err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	for k, val := range m {
		v.SetDefault(k, val)
	}

	return nil
}

// decodeHooks returns the combined decode hook for byte sizes and durations
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// Marshal renders c as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes c as YAML to path. the file is replaced atomically so a reader
// never sees a partial configuration.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
