package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pkgerrors "github.com/HaxIOX/Portax/errors"
	"github.com/HaxIOX/Portax/scale"
	"github.com/HaxIOX/Portax/telemetry"
)

// Input source constants
const (
	SourceSerial = "serial" // Real serial port via go.bug.st/serial
	SourceSim    = "sim"    // Synthetic line generator
)

// Config is the complete application configuration, loaded once at startup.
// The Series and Scale sections seed the runtime Store; everything else is
// immutable for the life of the process.
type Config struct {
	Input   InputConfig              `json:"input"             yaml:"input"`
	Series  []telemetry.SeriesConfig `json:"series,omitempty"  yaml:"series,omitempty"`
	Scale   ScaleConfig              `json:"scale"             yaml:"scale"`
	History HistoryConfig            `json:"history"           yaml:"history"`
	Outputs OutputsConfig            `json:"outputs"           yaml:"outputs"`
	NATS    NATSConfig               `json:"nats"              yaml:"nats"`
	Gateway GatewayConfig            `json:"gateway"           yaml:"gateway"`
	Metrics MetricsConfig            `json:"metrics"           yaml:"metrics"`
	Logging LoggingConfig            `json:"logging"           yaml:"logging"`
}

// InputConfig selects and parameterizes the line source.
type InputConfig struct {
	Source string       `json:"source" yaml:"source"` // "serial" or "sim"
	Serial SerialConfig `json:"serial" yaml:"serial"`
	Sim    SimConfig    `json:"sim"    yaml:"sim"`
}

// SerialConfig defines the serial port parameters.
type SerialConfig struct {
	Device   string `json:"device"    yaml:"device"`    // e.g. "/dev/ttyUSB0", "COM3"
	BaudRate int    `json:"baud_rate" yaml:"baud_rate"` // e.g. 9600, 115200
	DataBits int    `json:"data_bits" yaml:"data_bits"` // 5..8
	Parity   string `json:"parity"    yaml:"parity"`    // "none", "odd", "even", "mark", "space"
	StopBits string `json:"stop_bits" yaml:"stop_bits"` // "1", "1.5", "2"
}

// SimConfig defines the synthetic line generator.
type SimConfig struct {
	Interval Duration `json:"interval" yaml:"interval"` // emission cadence
	Seed     int64    `json:"seed"     yaml:"seed"`     // noise seed, 0 = time-based
}

// ScaleConfig seeds the axis-scaling mode.
type ScaleConfig struct {
	Mode scale.Mode `json:"mode" yaml:"mode"` // "per-series" or "shared"
}

// HistoryConfig sizes the sample retention ring.
type HistoryConfig struct {
	Capacity int `json:"capacity" yaml:"capacity"`
}

// OutputsConfig holds the optional output taps.
type OutputsConfig struct {
	File FileOutputConfig `json:"file" yaml:"file"`
	NATS NATSOutputConfig `json:"nats" yaml:"nats"`
}

// FileOutputConfig defines the rotating line log.
type FileOutputConfig struct {
	Enabled       bool     `json:"enabled"        yaml:"enabled"`
	Path          string   `json:"path"           yaml:"path"`
	MaxSizeBytes  int64    `json:"max_size_bytes" yaml:"max_size_bytes"`
	Compress      bool     `json:"compress"       yaml:"compress"`
	FlushInterval Duration `json:"flush_interval" yaml:"flush_interval"`
}

// NATSOutputConfig defines the NATS mirror tap. It is enabled only when
// both Enabled is set and the top-level NATS section has at least one URL.
type NATSOutputConfig struct {
	Enabled       bool   `json:"enabled"        yaml:"enabled"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

// NATSConfig defines the NATS connection settings.
type NATSConfig struct {
	URLs          []string `json:"urls,omitempty"           yaml:"urls,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
	PingInterval  Duration `json:"ping_interval,omitempty"  yaml:"ping_interval,omitempty"`
	Username      string   `json:"username,omitempty"       yaml:"username,omitempty"`
	Password      string   `json:"password,omitempty"       yaml:"password,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
}

// GatewayConfig defines the HTTP/WebSocket gateway server.
type GatewayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Host    string `json:"host"    yaml:"host"`
	Port    int    `json:"port"    yaml:"port"`
}

// MetricsConfig defines the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port"    yaml:"port"`
	Path    string `json:"path"    yaml:"path"`
}

// LoggingConfig defines structured logging output.
type LoggingConfig struct {
	Level  string `json:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the reference configuration: simulated input,
// four positional series, per-series scaling, and the gateway on :8455.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Source: SourceSim,
			Serial: SerialConfig{
				BaudRate: 115200,
				DataBits: 8,
				Parity:   "none",
				StopBits: "1",
			},
			Sim: SimConfig{
				Interval: Duration(100 * time.Millisecond),
			},
		},
		Series: telemetry.DefaultSeries(),
		Scale: ScaleConfig{
			Mode: scale.ModePerSeries,
		},
		History: HistoryConfig{
			Capacity: 150,
		},
		Outputs: OutputsConfig{
			File: FileOutputConfig{
				MaxSizeBytes:  10 << 20,
				Compress:      true,
				FlushInterval: Duration(time.Second),
			},
			NATS: NATSOutputConfig{
				SubjectPrefix: "portax",
			},
		},
		NATS: NATSConfig{
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			PingInterval:  Duration(30 * time.Second),
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8455,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the full configuration and classifies any failure as
// invalid so callers can distinguish bad config from runtime trouble.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return pkgerrors.WrapInvalid(err, "Config", "Validate", "validate configuration")
	}
	return nil
}

func (c *Config) validate() error {
	if err := c.Input.validate(); err != nil {
		return err
	}
	if err := telemetry.ValidateSeries(c.Series); err != nil {
		return err
	}
	if !c.Scale.Mode.Valid() {
		return fmt.Errorf("scale.mode %q must be %q or %q", c.Scale.Mode, scale.ModePerSeries, scale.ModeShared)
	}
	if c.History.Capacity < 0 {
		return fmt.Errorf("history.capacity must be non-negative, got %d", c.History.Capacity)
	}
	if err := c.Outputs.validate(); err != nil {
		return err
	}
	if c.Outputs.NATS.Enabled && len(c.NATS.URLs) == 0 {
		return errors.New("outputs.nats.enabled requires nats.urls")
	}
	if err := c.Gateway.validate(); err != nil {
		return err
	}
	if err := c.Metrics.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

func (ic *InputConfig) validate() error {
	switch ic.Source {
	case SourceSerial:
		return ic.Serial.validate()
	case SourceSim:
		if ic.Sim.Interval <= 0 {
			return errors.New("input.sim.interval must be positive")
		}
		return nil
	default:
		return fmt.Errorf("input.source %q must be %q or %q", ic.Source, SourceSerial, SourceSim)
	}
}

func (sc *SerialConfig) validate() error {
	if sc.Device == "" {
		return errors.New("input.serial.device is required")
	}
	if sc.BaudRate <= 0 {
		return fmt.Errorf("input.serial.baud_rate must be positive, got %d", sc.BaudRate)
	}
	if sc.DataBits < 5 || sc.DataBits > 8 {
		return fmt.Errorf("input.serial.data_bits must be 5..8, got %d", sc.DataBits)
	}
	switch sc.Parity {
	case "none", "odd", "even", "mark", "space":
	default:
		return fmt.Errorf("input.serial.parity %q must be one of none, odd, even, mark, space", sc.Parity)
	}
	switch sc.StopBits {
	case "1", "1.5", "2":
	default:
		return fmt.Errorf("input.serial.stop_bits %q must be one of 1, 1.5, 2", sc.StopBits)
	}
	return nil
}

func (oc *OutputsConfig) validate() error {
	if oc.File.Enabled {
		if oc.File.Path == "" {
			return errors.New("outputs.file.path is required when outputs.file.enabled")
		}
		if oc.File.MaxSizeBytes <= 0 {
			return errors.New("outputs.file.max_size_bytes must be positive")
		}
	}
	if oc.NATS.Enabled && oc.NATS.SubjectPrefix == "" {
		return errors.New("outputs.nats.subject_prefix is required when outputs.nats.enabled")
	}
	if oc.NATS.SubjectPrefix != "" && !isValidSubjectPrefix(oc.NATS.SubjectPrefix) {
		return fmt.Errorf("outputs.nats.subject_prefix %q is not valid for NATS subjects", oc.NATS.SubjectPrefix)
	}
	return nil
}

// isValidSubjectPrefix checks the prefix is usable in NATS subjects:
// dot-separated alphanumeric tokens with dashes and underscores.
func isValidSubjectPrefix(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return !strings.Contains(s, "..")
}

func (gc *GatewayConfig) validate() error {
	if !gc.Enabled {
		return nil
	}
	if gc.Port < 1 || gc.Port > 65535 {
		return fmt.Errorf("gateway.port must be 1..65535, got %d", gc.Port)
	}
	return nil
}

func (mc *MetricsConfig) validate() error {
	if !mc.Enabled {
		return nil
	}
	if mc.Port < 1 || mc.Port > 65535 {
		return fmt.Errorf("metrics.port must be 1..65535, got %d", mc.Port)
	}
	if mc.Path != "" && !strings.HasPrefix(mc.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", mc.Path)
	}
	return nil
}

func (lc *LoggingConfig) validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", lc.Level)
	}
	switch lc.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", lc.Format)
	}
	return nil
}

// String returns an indented JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Duration wraps time.Duration so config files can spell durations either
// as Go duration strings ("16ms", "2s") or as integer nanoseconds.
type Duration time.Duration

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.decode(raw)
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.decode(raw)
}

func (d *Duration) decode(raw any) error {
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(v)
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	default:
		return fmt.Errorf("invalid duration type %T", raw)
	}
	return nil
}
