package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
module_version: "1.0"
agent_version: "1.0"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ThreadsDiscovery != 4 {
		t.Errorf("ThreadsDiscovery default = %d, want 4", cfg.ThreadsDiscovery)
	}
	if cfg.WorkerStartupBatchSize != 4 {
		t.Errorf("WorkerStartupBatchSize default = %d, want 4", cfg.WorkerStartupBatchSize)
	}
	if cfg.WorkerStartupPause != time.Second {
		t.Errorf("WorkerStartupPause default = %v, want 1s", cfg.WorkerStartupPause)
	}
	if cfg.ProbeTimeout != 2*time.Second {
		t.Errorf("ProbeTimeout default = %v, want 2s", cfg.ProbeTimeout)
	}
	if cfg.NmapPath != "nmap" {
		t.Errorf("NmapPath default = %q, want nmap", cfg.NmapPath)
	}
	if cfg.HealthCheckPort != 8080 {
		t.Errorf("HealthCheckPort default = %d, want 8080", cfg.HealthCheckPort)
	}
	if cfg.SpoolDir != "./spool" {
		t.Errorf("SpoolDir default = %q, want ./spool", cfg.SpoolDir)
	}
}

func TestLoadParsesExplicitValues(t *testing.T) {
	path := writeConfig(t, `
threads_discovery: 8
nmap_enabled: true
nmap_path: /usr/bin/nmap
netbios_enabled: true
snmp_enabled: true
probe_timeout: 5s
worker_startup_batch_size: 2
worker_startup_pause: 500ms
health_check_port: 9090
telemetry:
  url: http://localhost:8086
  org: myorg
  bucket: netdiscovery
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ThreadsDiscovery != 8 || !cfg.NmapEnabled || cfg.NmapPath != "/usr/bin/nmap" {
		t.Fatalf("unexpected core fields: %+v", cfg)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.ProbeTimeout)
	}
	if cfg.WorkerStartupPause != 500*time.Millisecond {
		t.Errorf("WorkerStartupPause = %v, want 500ms", cfg.WorkerStartupPause)
	}
	if cfg.Telemetry.Org != "myorg" || cfg.Telemetry.Bucket != "netdiscovery" {
		t.Errorf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeConfig(t, `probe_timeout: "not-a-duration"`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an invalid probe_timeout")
	}
}

func TestValidateRejectsOutOfRangeThreads(t *testing.T) {
	cfg := &Config{ThreadsDiscovery: 0, WorkerStartupBatchSize: 1, HealthCheckPort: 80}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected validation error for zero threads")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	path := writeConfig(t, `module_version: "1.0"`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate cleanly, got %v", err)
	}
}
