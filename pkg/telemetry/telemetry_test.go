package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/dd0wney/cluso-graphmetrics/pkg/config"
)

// TestSetup_Disabled tests that disabled tracing installs nothing
func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "test", nil)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

// TestSetup_Stdout tests that spans reach the stdout exporter on shutdown
func TestSetup_Stdout(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var buf bytes.Buffer
	cfg := config.TelemetryConfig{
		Enabled:     true,
		Exporter:    "stdout",
		ServiceName: "graphmetrics-test",
		SampleRatio: 1,
	}
	shutdown, err := Setup(context.Background(), cfg, "v0.0.1", &buf)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "power iteration")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "power iteration") {
		t.Errorf("Expected exported span, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "graphmetrics-test") {
		t.Error("Expected service name in exported resource")
	}
}
