// Package config loads the agent-local settings the discovery core needs
// that are never part of the server's job prolog: probe capability
// toggles, worker pool sizing, and the telemetry/health surfaces
// that the discovery core needs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TelemetryConfig holds the InfluxDB connection settings for the
// Telemetry Sink, mirroring the common InfluxDBConfig shape.
type TelemetryConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Config holds all agent-local configuration parameters.
type Config struct {
	ModuleVersion    string
	AgentVersion     string
	ThreadsDiscovery int
	NmapPath         string
	NmapEnabled      bool
	NetbiosEnabled   bool
	SNMPEnabled      bool
	ProbeTimeout     time.Duration

	WorkerStartupBatchSize int
	WorkerStartupPause     time.Duration

	// ProbeRatePerSecond caps probe attempts per second across every
	// worker. Zero means unlimited.
	ProbeRatePerSecond float64

	HealthCheckPort int
	SpoolDir        string
	Telemetry       TelemetryConfig
}

// Load parses a YAML configuration file at path and returns a Config with
// the agent-local defaults applied. It does not call Validate.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Raw config struct for YAML parsing with string duration fields,
	// decoded once and converted to typed values below.
	var raw struct {
		ModuleVersion    string `yaml:"module_version"`
		AgentVersion     string `yaml:"agent_version"`
		ThreadsDiscovery int    `yaml:"threads_discovery"`
		NmapPath         string `yaml:"nmap_path"`
		NmapEnabled      bool   `yaml:"nmap_enabled"`
		NetbiosEnabled   bool   `yaml:"netbios_enabled"`
		SNMPEnabled      bool   `yaml:"snmp_enabled"`
		ProbeTimeout     string `yaml:"probe_timeout"`

		WorkerStartupBatchSize int     `yaml:"worker_startup_batch_size"`
		WorkerStartupPause     string  `yaml:"worker_startup_pause"`
		ProbeRatePerSecond     float64 `yaml:"probe_rate_per_second"`

		HealthCheckPort int    `yaml:"health_check_port"`
		SpoolDir        string `yaml:"spool_dir"`
		Telemetry       struct {
			URL    string `yaml:"url"`
			Token  string `yaml:"token"`
			Org    string `yaml:"org"`
			Bucket string `yaml:"bucket"`
		} `yaml:"telemetry"`
	}

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}

	probeTimeout, err := parseDurationOrDefault(raw.ProbeTimeout, 2*time.Second, "probe_timeout")
	if err != nil {
		return nil, err
	}
	startupPause, err := parseDurationOrDefault(raw.WorkerStartupPause, time.Second, "worker_startup_pause")
	if err != nil {
		return nil, err
	}

	if raw.ThreadsDiscovery == 0 {
		raw.ThreadsDiscovery = 4
	}
	if raw.WorkerStartupBatchSize == 0 {
		raw.WorkerStartupBatchSize = 4
	}
	if raw.HealthCheckPort == 0 {
		raw.HealthCheckPort = 8080
	}
	if raw.NmapPath == "" {
		raw.NmapPath = "nmap"
	}
	if raw.SpoolDir == "" {
		raw.SpoolDir = "./spool"
	}

	raw.Telemetry.URL = os.ExpandEnv(raw.Telemetry.URL)
	raw.Telemetry.Token = os.ExpandEnv(raw.Telemetry.Token)
	raw.Telemetry.Org = os.ExpandEnv(raw.Telemetry.Org)
	raw.Telemetry.Bucket = os.ExpandEnv(raw.Telemetry.Bucket)

	return &Config{
		ModuleVersion:          raw.ModuleVersion,
		AgentVersion:           raw.AgentVersion,
		ThreadsDiscovery:       raw.ThreadsDiscovery,
		NmapPath:               raw.NmapPath,
		NmapEnabled:            raw.NmapEnabled,
		NetbiosEnabled:         raw.NetbiosEnabled,
		SNMPEnabled:            raw.SNMPEnabled,
		ProbeTimeout:           probeTimeout,
		WorkerStartupBatchSize: raw.WorkerStartupBatchSize,
		WorkerStartupPause:     startupPause,
		ProbeRatePerSecond:     raw.ProbeRatePerSecond,
		HealthCheckPort:        raw.HealthCheckPort,
		SpoolDir:               raw.SpoolDir,
		Telemetry: TelemetryConfig{
			URL:    raw.Telemetry.URL,
			Token:  raw.Telemetry.Token,
			Org:    raw.Telemetry.Org,
			Bucket: raw.Telemetry.Bucket,
		},
	}, nil
}

func parseDurationOrDefault(raw string, def time.Duration, field string) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

// Validate performs sanity checks on the loaded configuration.
func Validate(cfg *Config) error {
	if cfg.ThreadsDiscovery < 1 || cfg.ThreadsDiscovery > 1000 {
		return fmt.Errorf("threads_discovery must be between 1 and 1000, got %d", cfg.ThreadsDiscovery)
	}
	if cfg.WorkerStartupBatchSize < 1 {
		return fmt.Errorf("worker_startup_batch_size must be at least 1, got %d", cfg.WorkerStartupBatchSize)
	}
	if cfg.HealthCheckPort < 1 || cfg.HealthCheckPort > 65535 {
		return fmt.Errorf("health_check_port must be between 1 and 65535, got %d", cfg.HealthCheckPort)
	}
	return nil
}
