package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	gmtls "github.com/dd0wney/cluso-graphmetrics/pkg/tls"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
}

// startServer serves gs on a random port until the test ends
func startServer(t *testing.T, gs *GracefulServer) (string, context.CancelFunc, <-chan error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- gs.Serve(ctx, ln)
		close(finished)
	}()
	t.Cleanup(func() {
		cancel()
		<-finished
	})

	return "http://" + ln.Addr().String(), cancel, done
}

// TestGracefulServer_ServeAndShutdown tests serving until the context ends
func TestGracefulServer_ServeAndShutdown(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", okHandler(), WithShutdownTimeout(time.Second))

	var mu sync.Mutex
	var order []string
	gs.OnShutdown("gateway", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "gateway")
		return nil
	})
	gs.OnShutdown("telemetry", func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "telemetry")
		return nil
	})

	url, cancel, done := startServer(t, gs)

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if gs.Addr() == nil {
		t.Error("Expected Addr to be set while serving")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if !gs.IsShuttingDown() {
		t.Error("Expected shutdown to be initiated")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "gateway" || order[1] != "telemetry" {
		t.Errorf("Expected hooks in registration order, got %v", order)
	}
}

// TestGracefulServer_HookError tests that hook failures are reported
func TestGracefulServer_HookError(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", okHandler())
	hookErr := errors.New("flush failed")
	gs.OnShutdown("telemetry", func(context.Context) error { return hookErr })

	if err := gs.Shutdown(); !errors.Is(err, hookErr) {
		t.Fatalf("Expected hook error, got %v", err)
	}
	// second call returns the same result without rerunning
	if err := gs.Shutdown(); !errors.Is(err, hookErr) {
		t.Fatalf("Expected cached hook error, got %v", err)
	}
}

// TestGracefulServer_ReloadConfig tests the ReloadConfig method
func TestGracefulServer_ReloadConfig(t *testing.T) {
	gs := NewGracefulServer(":0", okHandler())

	if err := gs.ReloadConfig(); err != nil {
		t.Errorf("ReloadConfig() without func error = %v", err)
	}

	reloadCalled := false
	gs.SetConfigReloadFunc(func() error {
		reloadCalled = true
		return nil
	})

	if err := gs.ReloadConfig(); err != nil {
		t.Errorf("ReloadConfig() error = %v", err)
	}
	if !reloadCalled {
		t.Error("Config reload function was not called")
	}
}

// TestGracefulServer_ReloadConfigWithError tests error handling during reload
func TestGracefulServer_ReloadConfigWithError(t *testing.T) {
	gs := NewGracefulServer(":0", okHandler())
	gs.SetConfigReloadFunc(func() error { return http.ErrServerClosed })

	if err := gs.ReloadConfig(); !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("ReloadConfig() error = %v, want %v", err, http.ErrServerClosed)
	}
}

// TestGracefulServer_TLS tests serving https with a generated certificate
func TestGracefulServer_TLS(t *testing.T) {
	cert, err := gmtls.GenerateSelfSigned([]string{"127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSigned failed: %v", err)
	}
	gs := NewGracefulServer("127.0.0.1:0", okHandler(),
		WithTLS(&tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}),
		WithShutdownTimeout(time.Second),
	)

	url, _, _ := startServer(t, gs)
	url = strings.Replace(url, "http://", "https://", 1)

	roots := x509.NewCertPool()
	roots.AddCert(cert.Leaf)
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: roots}},
	}
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET over TLS failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
}
