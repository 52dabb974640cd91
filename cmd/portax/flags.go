package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

// parseFlags parses command-line flags, falling back to PORTAX_*
// environment variables for defaults.
func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config", getEnv("PORTAX_CONFIG", ""),
		"Path to a JSON or YAML configuration file (empty runs the built-in defaults)")
	flag.StringVar(&cfg.ConfigPath, "c", getEnv("PORTAX_CONFIG", ""),
		"Path to configuration file (shorthand)")

	// Empty means "defer to the config file"; PORTAX_LOG_LEVEL and
	// PORTAX_LOG_FORMAT are already applied by the config loader.
	flag.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: text, json (overrides config)")

	flag.BoolVar(&cfg.Debug, "debug", getEnvBool("PORTAX_DEBUG", false),
		"Enable debug logging")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("PORTAX_SHUTDOWN_TIMEOUT", 15*time.Second),
		"Maximum time to wait for graceful shutdown")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show detailed help")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show detailed help (shorthand)")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate the configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

// validateFlags checks flag values before anything starts.
func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not accessible: %w", err)
		}
	}

	validLevels := []string{"", "debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level %q (use debug, info, warn, or error)", cfg.LogLevel)
	}

	validFormats := []string{"", "text", "json"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format %q (use text or json)", cfg.LogFormat)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", cfg.ShutdownTimeout)
	}

	return nil
}

// printDetailedHelp prints usage with examples to stderr.
func printDetailedHelp() {
	fmt.Fprintf(os.Stderr, `%s - headless serial telemetry core

Reads line-oriented telemetry from a serial device or a built-in
simulator, maintains a rolling sample window, and serves it over an
HTTP/WebSocket gateway with optional file and NATS mirrors.

Usage:
  %s [flags]

Flags:
`, appName, appName)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Environment variables:
  PORTAX_CONFIG             Path to the configuration file
  PORTAX_DEBUG              Enable debug logging (true/false)
  PORTAX_SHUTDOWN_TIMEOUT   Graceful shutdown budget (e.g. 30s)
  PORTAX_INPUT_SOURCE       Input source: serial or sim
  PORTAX_SERIAL_DEVICE      Serial device path (e.g. /dev/ttyUSB0)
  PORTAX_SERIAL_BAUD        Serial baud rate
  PORTAX_NATS_URLS          Comma-separated NATS server URLs
  PORTAX_GATEWAY_PORT       Gateway listen port
  PORTAX_METRICS_PORT       Prometheus metrics port
  PORTAX_LOG_LEVEL          Log level
  PORTAX_LOG_FORMAT         Log format

Examples:
  # Run against the built-in simulator with default settings
  %s

  # Read a real device
  PORTAX_INPUT_SOURCE=serial PORTAX_SERIAL_DEVICE=/dev/ttyUSB0 %s

  # Run with a configuration file
  %s --config=portax.yaml

  # Check a configuration file without starting anything
  %s --config=portax.yaml --validate

Version: %s (built %s)
`, appName, appName, appName, appName, Version, BuildTime)
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// contains reports whether a string slice contains a value.
func contains(slice []string, value string) bool {
	for _, item := range slice {
		if item == value {
			return true
		}
	}
	return false
}
