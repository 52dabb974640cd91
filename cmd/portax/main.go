// Package main implements the entry point for the Portax telemetry core.
// Portax ingests line-oriented telemetry from a serial device (or a
// built-in simulator), extracts numeric samples into a bounded history
// window, and serves the live feed over an HTTP/WebSocket gateway with
// optional file and NATS mirrors.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/HaxIOX/Portax/component"
	"github.com/HaxIOX/Portax/config"
	"github.com/HaxIOX/Portax/gateway"
	"github.com/HaxIOX/Portax/health"
	"github.com/HaxIOX/Portax/history"
	"github.com/HaxIOX/Portax/input/serial"
	"github.com/HaxIOX/Portax/input/sim"
	"github.com/HaxIOX/Portax/metric"
	"github.com/HaxIOX/Portax/natsclient"
	fileout "github.com/HaxIOX/Portax/output/file"
	natsout "github.com/HaxIOX/Portax/output/nats"
	"github.com/HaxIOX/Portax/pipeline"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "portax"
)

// healthPollInterval paces the component health sweep.
const healthPollInterval = 10 * time.Second

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// CLI flags beat both the file and the PORTAX_* environment overrides.
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config", configSource(cliCfg.ConfigPath))
		return nil
	}

	slog.Info("Starting Portax",
		"version", Version,
		"build_time", BuildTime,
		"config", configSource(cliCfg.ConfigPath),
		"input_source", cfg.Input.Source)

	return runCore(cfg, cliCfg, logger)
}

// configSource names where the configuration came from for log lines.
func configSource(path string) string {
	if path == "" {
		return "built-in defaults"
	}
	return path
}

// loadConfig loads the configuration file, or the built-in defaults when
// no path is given. Environment overrides apply either way.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

// runCore wires the pipeline and runs it until a shutdown signal.
func runCore(cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	metricsRegistry := metric.NewMetricsRegistry()

	settings, err := config.NewStore(cfg.Series, cfg.Scale.Mode)
	if err != nil {
		return fmt.Errorf("create settings store: %w", err)
	}
	store := history.NewWithCapacity(cfg.History.Capacity)
	pipe := pipeline.New(store, settings,
		pipeline.WithLogger(logger.With("component", "pipeline")),
		pipeline.WithMetrics(metricsRegistry),
	)

	var natsClient *natsclient.Client
	if cfg.Outputs.NATS.Enabled {
		natsClient, err = buildNATSClient(cfg, logger, metricsRegistry)
		if err != nil {
			return err
		}
	}

	manager := component.NewManager(logger)
	if err := registerComponents(cfg, manager, settings, store, pipe, natsClient, metricsRegistry, logger); err != nil {
		return err
	}

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}

	if cfg.Metrics.Enabled {
		metricsServer := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsServer.Stop() }()
		slog.Info("Metrics server listening", "addr", metricsServer.Address(), "path", cfg.Metrics.Path)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if natsClient != nil {
		if err := connectNATS(signalCtx, natsClient); err != nil {
			return err
		}
		defer func() { _ = natsClient.Close(context.Background()) }()
	}

	if err := manager.Start(signalCtx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}

	slog.Info("Portax started")

	monitor := health.NewMonitor()
	go watchHealth(signalCtx, manager, monitor)

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := manager.Stop(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Portax shutdown complete")
	return nil
}

// registerComponents creates and registers every enabled component.
// Registration order is start order: outputs and the gateway come up
// before the input, so every tap and surface is ready when data flows.
func registerComponents(
	cfg *config.Config,
	manager *component.Manager,
	settings *config.Store,
	store *history.Store,
	pipe *pipeline.Pipeline,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) error {
	var observed []component.Discoverable

	if cfg.Outputs.File.Enabled {
		out := fileout.NewOutput(fileout.OutputDeps{
			Config:          cfg.Outputs.File,
			MetricsRegistry: registry,
			Logger:          logger.With("component", "file-output"),
		})
		if err := manager.Register("file-output", out); err != nil {
			return fmt.Errorf("register file output: %w", err)
		}
		pipe.AddLineTap(out.Lines)
		observed = append(observed, out)
	}

	if cfg.Outputs.NATS.Enabled {
		out, err := natsout.NewOutput(natsout.OutputDeps{
			Config:          cfg.Outputs.NATS,
			Client:          natsClient,
			MetricsRegistry: registry,
			Logger:          logger.With("component", "nats-output"),
		})
		if err != nil {
			return fmt.Errorf("create NATS output: %w", err)
		}
		if err := manager.Register("nats-output", out); err != nil {
			return fmt.Errorf("register NATS output: %w", err)
		}
		pipe.AddLineTap(out.Lines)
		pipe.AddSampleTap(out.Samples)
		observed = append(observed, out)
	}

	input, transport, err := buildInput(cfg, settings, pipe, registry, logger)
	if err != nil {
		return err
	}
	observed = append(observed, input)

	if cfg.Gateway.Enabled {
		gw, err := gateway.NewServer(gateway.ServerDeps{
			Config:          cfg.Gateway,
			History:         store,
			Settings:        settings,
			Pipeline:        pipe,
			Transport:       transport,
			Components:      observed,
			Logger:          logger.With("component", "gateway"),
			MetricsRegistry: registry,
		})
		if err != nil {
			return fmt.Errorf("create gateway: %w", err)
		}
		if err := manager.Register("gateway", gw); err != nil {
			return fmt.Errorf("register gateway: %w", err)
		}
		pipe.AddLineTap(gw.Lines)
		pipe.AddSampleTap(gw.Samples)
	}

	// The input starts last so nothing it emits can outrun a tap.
	if err := manager.Register(cfg.Input.Source+"-input", input); err != nil {
		return fmt.Errorf("register input: %w", err)
	}
	return nil
}

// buildInput creates the configured line source. Both sources expose the
// Write method the gateway's send endpoint needs.
func buildInput(
	cfg *config.Config,
	settings *config.Store,
	pipe *pipeline.Pipeline,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (component.LifecycleComponent, gateway.Transport, error) {
	switch cfg.Input.Source {
	case config.SourceSerial:
		in, err := serial.NewInput(serial.InputDeps{
			Config:          cfg.Input.Serial,
			Sink:            pipe,
			MetricsRegistry: registry,
			Logger:          logger.With("component", "serial-input"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create serial input: %w", err)
		}
		return in, in, nil
	case config.SourceSim:
		in := sim.NewInput(sim.InputDeps{
			Config:          cfg.Input.Sim,
			Series:          settings,
			Sink:            pipe,
			MetricsRegistry: registry,
			Logger:          logger.With("component", "sim-input"),
		})
		return in, in, nil
	default:
		return nil, nil, fmt.Errorf("unknown input source %q", cfg.Input.Source)
	}
}

// buildNATSClient creates the shared NATS connection for the mirror output.
func buildNATSClient(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName),
		natsclient.WithLogger(logger.With("component", "nats")),
		natsclient.WithMetrics(registry),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(time.Duration(cfg.NATS.ReconnectWait)),
		natsclient.WithPingInterval(time.Duration(cfg.NATS.PingInterval)),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	return client, nil
}

// connectNATS establishes the NATS connection and waits for it to be ready.
func connectNATS(ctx context.Context, client *natsclient.Client) error {
	slog.Info("Connecting to NATS")
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}

// watchHealth folds component health into the monitor and logs
// transitions, per component and for the system aggregate.
func watchHealth(ctx context.Context, manager *component.Manager, monitor *health.Monitor) {
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	systemHealthy := true

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, hs := range manager.Health() {
				status := health.FromComponent(name, hs)
				if !monitor.Update(name, status) {
					continue
				}
				if status.Healthy {
					slog.Info("Component recovered", "component", name)
				} else {
					slog.Warn("Component unhealthy", "component", name, "message", status.Message)
				}
			}

			system := monitor.AggregateHealth(appName)
			if system.Healthy != systemHealthy {
				if system.Healthy {
					slog.Info("System healthy again")
				} else {
					slog.Warn("System degraded", "message", system.Message)
				}
				systemHealthy = system.Healthy
			}
		}
	}
}
