package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/HaxIOX/Portax/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PORTAX"

// Load reads the config file at path (JSON or YAML, picked by extension),
// layered over DefaultConfig, applies PORTAX_* environment overrides, and
// validates the result. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := decodeFile(path, cfg); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "Config", "Load", fmt.Sprintf("load %s", path))
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "Config", "Load", "apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault returns DefaultConfig with environment overrides applied and
// validated. Used when no config file is given.
func LoadDefault() (*Config, error) {
	cfg := DefaultConfig()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "Config", "LoadDefault", "apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile unmarshals the file over cfg so only present fields override.
func decodeFile(path string, cfg *Config) error {
	data, err := safeReadFile(path)
	if err != nil {
		return err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := validateJSONDepth(data); err != nil {
			return fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config extension %q (use .json, .yaml or .yml)", ext)
	}
	return nil
}

// SaveToFile writes the configuration to path, as JSON or YAML by extension.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return fmt.Errorf("unsupported config extension %q (use .json, .yaml or .yml)", ext)
	}
	if err != nil {
		return err
	}
	return safeWriteFile(path, data)
}

// applyEnvOverrides applies PORTAX_* environment variables on top of cfg.
func applyEnvOverrides(cfg *Config) error {
	if err := envString(EnvPrefix+"_INPUT_SOURCE", &cfg.Input.Source); err != nil {
		return err
	}
	if err := envString(EnvPrefix+"_SERIAL_DEVICE", &cfg.Input.Serial.Device); err != nil {
		return err
	}
	if err := envInt(EnvPrefix+"_SERIAL_BAUD", &cfg.Input.Serial.BaudRate); err != nil {
		return err
	}

	if val, err := envLookup(EnvPrefix + "_NATS_URLS"); err != nil {
		return err
	} else if val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if err := envString(EnvPrefix+"_NATS_USERNAME", &cfg.NATS.Username); err != nil {
		return err
	}
	if err := envString(EnvPrefix+"_NATS_PASSWORD", &cfg.NATS.Password); err != nil {
		return err
	}
	if err := envString(EnvPrefix+"_NATS_TOKEN", &cfg.NATS.Token); err != nil {
		return err
	}

	if err := envInt(EnvPrefix+"_GATEWAY_PORT", &cfg.Gateway.Port); err != nil {
		return err
	}
	if err := envInt(EnvPrefix+"_METRICS_PORT", &cfg.Metrics.Port); err != nil {
		return err
	}

	if err := envString(EnvPrefix+"_LOG_LEVEL", &cfg.Logging.Level); err != nil {
		return err
	}
	return envString(EnvPrefix+"_LOG_FORMAT", &cfg.Logging.Format)
}

// envLookup reads and sanity-checks one environment variable.
// Unset or empty variables return "" with no error.
func envLookup(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", err
	}
	return val, nil
}

func envString(key string, dst *string) error {
	val, err := envLookup(key)
	if err != nil {
		return err
	}
	if val != "" {
		*dst = val
	}
	return nil
}

func envInt(key string, dst *int) error {
	val, err := envLookup(key)
	if err != nil {
		return err
	}
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
