package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graphmetrics.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// TestDefault_IsValid tests that the built-in configuration validates
func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
}

// TestLoad_File tests YAML overlay onto defaults
func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9999"
  cors_origins: ["http://localhost:3000"]
gateway:
  runner: pool
  policy: reject
  timeout: 90s
  pool_workers: 4
engine:
  top_k: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9999" {
		t.Errorf("Expected addr :9999, got %s", cfg.Server.Addr)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("Unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Gateway.Runner != RunnerPool || cfg.Gateway.Policy != "reject" || cfg.Gateway.PoolWorkers != 4 {
		t.Errorf("Unexpected gateway section %+v", cfg.Gateway)
	}
	if cfg.Gateway.Timeout != 90*time.Second {
		t.Errorf("Expected timeout 90s, got %v", cfg.Gateway.Timeout)
	}
	if cfg.Engine.TopK != 10 || cfg.Engine.MaxIterations != 200 {
		t.Errorf("Expected top_k overlay with default iterations, got %+v", cfg.Engine)
	}
}

// TestLoad_UnknownKey tests that typos in the file are rejected
func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "gateway:\n  runer: pool\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for unknown key")
	}
}

// TestLoad_EmptyFile tests that an empty file yields the defaults
func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("Expected default addr, got %s", cfg.Server.Addr)
	}
}

// TestLoad_MissingFile tests the read error path
func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

// TestApplyEnv tests environment overrides
func TestApplyEnv(t *testing.T) {
	t.Setenv("GRAPHMETRICS_ADDR", ":7000")
	t.Setenv("GRAPHMETRICS_RUNNER", "remote")
	t.Setenv("GRAPHMETRICS_TRANSPORT", "nats")
	t.Setenv("GRAPHMETRICS_NATS_URL", "nats://broker:4222")
	t.Setenv("GRAPHMETRICS_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GRAPHMETRICS_TOLERANCE", "1e-8")
	t.Setenv("GRAPHMETRICS_MAX_PASSES", "not-a-number")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":7000" || cfg.Gateway.Runner != RunnerRemote {
		t.Errorf("Env overrides not applied: %+v %+v", cfg.Server, cfg.Gateway)
	}
	if cfg.Transport.Kind != TransportNATS || cfg.Transport.NATSURL != "nats://broker:4222" {
		t.Errorf("Unexpected transport %+v", cfg.Transport)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected CORS origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Engine.Tolerance != 1e-8 {
		t.Errorf("Expected tolerance 1e-8, got %g", cfg.Engine.Tolerance)
	}
	if cfg.Engine.MaxPasses != 1000 {
		t.Errorf("Expected unparseable value to keep default, got %d", cfg.Engine.MaxPasses)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
}

// TestValidate_CollectsErrors tests that every invalid section is reported
func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Gateway.Runner = "gpu"
	cfg.Transport.Kind = TransportHTTP
	cfg.Transport.HTTPURL = "localhost:8080"
	cfg.Auth.Enabled = true
	cfg.Auth.JWTSecret = "short"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRatio = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	for _, want := range []string{"gateway.runner", "transport.http_url", "auth.jwt_secret", "telemetry.sample_ratio"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got: %v", want, err)
		}
	}
}

// TestValidate_TLS tests that TLS needs a key pair unless one is generated
func TestValidate_TLS(t *testing.T) {
	cfg := Default()
	cfg.Server.TLS.Enabled = true

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "server.tls.cert_file") {
		t.Fatalf("Expected missing certificate error, got %v", err)
	}

	cfg.Server.TLS.AutoGenerate = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected auto-generated TLS to validate, got %v", err)
	}
}
