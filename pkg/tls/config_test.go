package tls

import (
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCert(t *testing.T, hosts ...string) (certFile, keyFile string) {
	t.Helper()
	cert, err := GenerateSelfSigned(hosts, time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSigned() failed: %v", err)
	}
	dir := t.TempDir()
	certFile = filepath.Join(dir, "certs", "server.crt")
	keyFile = filepath.Join(dir, "certs", "server.key")
	if err := SaveCertificate(cert, certFile, keyFile); err != nil {
		t.Fatalf("SaveCertificate() failed: %v", err)
	}
	return certFile, keyFile
}

func TestGenerateSelfSigned(t *testing.T) {
	cert, err := GenerateSelfSigned([]string{"localhost", "10.0.0.1"}, 24*time.Hour)
	if err != nil {
		t.Fatalf("GenerateSelfSigned() failed: %v", err)
	}

	info, err := Info(cert)
	if err != nil {
		t.Fatalf("Info() failed: %v", err)
	}
	if len(info.DNSNames) != 1 || info.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v, want [localhost]", info.DNSNames)
	}
	if len(info.IPs) != 1 || info.IPs[0] != "10.0.0.1" {
		t.Errorf("IPs = %v, want [10.0.0.1]", info.IPs)
	}
	if info.IsExpired() {
		t.Error("Fresh certificate reported expired")
	}
	if d := info.ExpiresIn(); d <= 23*time.Hour || d > 25*time.Hour {
		t.Errorf("ExpiresIn() = %v, want about 24h", d)
	}
}

func TestGenerateSelfSigned_DefaultValidity(t *testing.T) {
	cert, err := GenerateSelfSigned(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	info, _ := Info(cert)
	if info.ExpiresIn() < DefaultValidity-time.Hour {
		t.Errorf("ExpiresIn() = %v, want about %v", info.ExpiresIn(), DefaultValidity)
	}
}

func TestSaveCertificate_KeyPermissions(t *testing.T) {
	_, keyFile := writeCert(t, "localhost")
	st, err := os.Stat(keyFile)
	if err != nil {
		t.Fatal(err)
	}
	if perm := st.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode = %o, want 600", perm)
	}
}

func TestServerConfig_FromFiles(t *testing.T) {
	certFile, keyFile := writeCert(t, "localhost")

	cfg, err := ServerConfig(Config{CertFile: certFile, KeyFile: keyFile})
	if err != nil {
		t.Fatalf("ServerConfig() failed: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("Expected one certificate, got %d", len(cfg.Certificates))
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %d, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Error("Client certificates should not be required without a CA")
	}
}

func TestServerConfig_Errors(t *testing.T) {
	if _, err := ServerConfig(Config{}); !errors.Is(err, ErrNoCertificate) {
		t.Errorf("Expected ErrNoCertificate, got %v", err)
	}
	if _, err := ServerConfig(Config{CertFile: "/nonexistent.crt", KeyFile: "/nonexistent.key"}); err == nil {
		t.Error("Expected error for missing files")
	}

	certFile, keyFile := writeCert(t, "localhost")
	bad := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(bad, []byte("not a certificate"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ServerConfig(Config{CertFile: certFile, KeyFile: keyFile, ClientCAFile: bad}); err == nil {
		t.Error("Expected error for an invalid CA file")
	}
}

func TestServerConfig_MutualTLS(t *testing.T) {
	certFile, keyFile := writeCert(t, "localhost")
	cfg, err := ServerConfig(Config{CertFile: certFile, KeyFile: keyFile, ClientCAFile: certFile})
	if err != nil {
		t.Fatalf("ServerConfig() failed: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert || cfg.ClientCAs == nil {
		t.Error("Expected client certificates to be required")
	}
}

// TestClientConfig_TrustsGeneratedCert tests an https round trip with a
// generated certificate as the only trusted root
func TestClientConfig_TrustsGeneratedCert(t *testing.T) {
	certFile, keyFile := writeCert(t, "127.0.0.1")

	serverCfg, err := ServerConfig(Config{CertFile: certFile, KeyFile: keyFile})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = serverCfg
	srv.StartTLS()
	t.Cleanup(srv.Close)

	clientCfg, err := ClientConfig(certFile)
	if err != nil {
		t.Fatalf("ClientConfig() failed: %v", err)
	}
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientCfg}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET over TLS failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	if cfg, err := ClientConfig(""); err != nil || cfg != nil {
		t.Errorf("ClientConfig(\"\") = %v, %v; want nil, nil", cfg, err)
	}
}
