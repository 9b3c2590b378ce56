// Package tls builds the TLS settings of the API server and of clients that
// reach HTTP workers over https.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrNoCertificate is returned when TLS is requested without a certificate
// and auto-generation is off
var ErrNoCertificate = errors.New("tls: no certificate configured and auto-generation disabled")

// DefaultValidity is the lifetime of generated certificates
const DefaultValidity = 365 * 24 * time.Hour

// Config holds server TLS options
type Config struct {
	CertFile string
	KeyFile  string
	// ClientCAFile enables mutual TLS: clients must present a certificate
	// signed by one of these CAs
	ClientCAFile string

	// Used when no cert/key pair is configured
	AutoGenerate bool
	Hosts        []string
	ValidFor     time.Duration
}

// ServerConfig loads or generates the server certificate and returns a
// configuration restricted to TLS 1.2+ and AEAD cipher suites
func ServerConfig(cfg Config) (*tls.Config, error) {
	var cert tls.Certificate
	var err error

	switch {
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
	case cfg.AutoGenerate:
		cert, err = GenerateSelfSigned(cfg.Hosts, cfg.ValidFor)
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
	default:
		return nil, ErrNoCertificate
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: SecureCipherSuites(),
	}

	if cfg.ClientCAFile != "" {
		pool, err := LoadCAPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsConfig, nil
}

// ClientConfig returns a client configuration trusting only the CAs in
// caFile. An empty caFile yields nil, meaning the system roots.
func ClientConfig(caFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	pool, err := LoadCAPool(caFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// LoadCAPool loads a CA certificate pool from a file
func LoadCAPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate %s", caFile)
	}
	return certPool, nil
}

// SecureCipherSuites returns the TLS 1.2 suites offered. TLS 1.3 suites are
// not configurable and always enabled.
func SecureCipherSuites() []uint16 {
	return []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	}
}
