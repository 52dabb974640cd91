// Package config provides configuration for the Portax process.
//
// Configuration is loaded once at startup from a JSON or YAML file,
// layered over built-in defaults, with PORTAX_* environment variables
// applied last. Each section validates itself; validation failures are
// classified as invalid so the caller can exit with a usage error
// instead of retrying.
//
// # Loading
//
//	cfg, err := config.Load("portax.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Fields absent from the file keep their defaults, so a minimal config
// like
//
//	input:
//	  source: serial
//	  serial:
//	    device: /dev/ttyUSB0
//
// is complete. Without a file, config.LoadDefault() gives the defaults
// plus environment overrides.
//
// # Runtime settings
//
// Most of the Config is immutable once loaded. The two user-facing
// settings that change at runtime, the series list and the scale mode,
// live in a Store:
//
//	store, err := config.NewStore(cfg.Series, cfg.Scale.Mode)
//
// The gateway updates the Store through its settings endpoints; the
// processing pipeline reads it on every extraction and range
// computation, so updates apply from the next line onward.
//
// # Environment overrides
//
//	PORTAX_INPUT_SOURCE    serial | sim
//	PORTAX_SERIAL_DEVICE   e.g. /dev/ttyUSB0
//	PORTAX_SERIAL_BAUD     e.g. 115200
//	PORTAX_NATS_URLS       comma-separated NATS URLs
//	PORTAX_GATEWAY_PORT    gateway HTTP port
//	PORTAX_LOG_LEVEL       debug | info | warn | error
//
// # Safety
//
// File access is guarded: size capped at 10MB, JSON nesting depth capped
// at 100, path traversal rejected, and only regular .json/.yaml/.yml
// files are accepted.
package config
