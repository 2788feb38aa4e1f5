package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Addr != ":8090" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.Backend != "memory" {
		t.Fatalf("Backend=%q want memory", cfg.Backend)
	}
	if cfg.Strategy != "flatscan" {
		t.Fatalf("Strategy=%q want flatscan", cfg.Strategy)
	}
	if cfg.H3Res != 7 {
		t.Fatalf("H3Res=%d want 7", cfg.H3Res)
	}
	if cfg.ScanCeiling != 1000 {
		t.Fatalf("ScanCeiling=%d want 1000", cfg.ScanCeiling)
	}
	if cfg.GhostPrefix != "ghost:" {
		t.Fatalf("GhostPrefix=%q", cfg.GhostPrefix)
	}
	if cfg.StoreOpTimeout != 250*time.Millisecond {
		t.Fatalf("StoreOpTimeout=%v", cfg.StoreOpTimeout)
	}
	if cfg.Ingest.Enabled {
		t.Fatal("ingest enabled by default")
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("metrics disabled by default")
	}
	if cfg.LogConsole {
		t.Fatal("console logging enabled by default")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("BACKEND", "Redis")
	t.Setenv("STRATEGY", "HIERARCHICAL")
	t.Setenv("H3_RES", "9")
	t.Setenv("SCAN_CEILING", "500")
	t.Setenv("GHOST_PREFIX", "synthetic/")
	t.Setenv("STORE_OP_TIMEOUT", "2s")
	t.Setenv("INGEST_ENABLED", "true")
	t.Setenv("KAFKA_TOPIC", "locs")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("LOG_CONSOLE", "yes")
	t.Setenv("BUILD_VERSION", "v1.2.3")

	cfg := FromEnv()
	if cfg.Backend != "redis" {
		t.Fatalf("Backend=%q", cfg.Backend)
	}
	if cfg.Strategy != "hierarchical" {
		t.Fatalf("Strategy=%q", cfg.Strategy)
	}
	if cfg.H3Res != 9 || cfg.ScanCeiling != 500 {
		t.Fatalf("H3Res=%d ScanCeiling=%d", cfg.H3Res, cfg.ScanCeiling)
	}
	if cfg.GhostPrefix != "synthetic/" {
		t.Fatalf("GhostPrefix=%q", cfg.GhostPrefix)
	}
	if cfg.StoreOpTimeout != 2*time.Second {
		t.Fatalf("StoreOpTimeout=%v", cfg.StoreOpTimeout)
	}
	if !cfg.Ingest.Enabled || cfg.Ingest.Topic != "locs" {
		t.Fatalf("Ingest=%+v", cfg.Ingest)
	}
	if cfg.Metrics.Enabled || cfg.Metrics.Version != "v1.2.3" {
		t.Fatalf("Metrics=%+v", cfg.Metrics)
	}
	if !cfg.LogConsole {
		t.Fatal("LogConsole not set")
	}
}

func TestFromEnv_ClampsAndFallbacks(t *testing.T) {
	t.Setenv("H3_RES", "99")
	t.Setenv("SCAN_CEILING", "-5")
	t.Setenv("STORE_OP_TIMEOUT", "not-a-duration")

	cfg := FromEnv()
	if cfg.H3Res != 15 {
		t.Fatalf("H3Res=%d want clamp to 15", cfg.H3Res)
	}
	if cfg.ScanCeiling != 1000 {
		t.Fatalf("ScanCeiling=%d want default 1000", cfg.ScanCeiling)
	}
	if cfg.StoreOpTimeout != 250*time.Millisecond {
		t.Fatalf("StoreOpTimeout=%v want default", cfg.StoreOpTimeout)
	}
}
