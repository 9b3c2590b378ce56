// Package config loads service configuration from a YAML file, then applies
// GRAPHMETRICS_* environment overrides, then validates the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-graphmetrics/pkg/validation"
)

// Runner names
const (
	RunnerInProcess = "inprocess"
	RunnerPool      = "pool"
	RunnerRemote    = "remote"
)

// Transport names
const (
	TransportMangos = "mangos"
	TransportNATS   = "nats"
	TransportHTTP   = "http"
	TransportZMQ    = "zmq"
)

// MinJWTSecretLength is the shortest accepted signing secret
const MinJWTSecretLength = 32

// Config is the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Engine    EngineConfig    `yaml:"engine"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Transport TransportConfig `yaml:"transport"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr                 string        `yaml:"addr"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes         int64         `yaml:"max_body_bytes"`
	CORSOrigins          []string      `yaml:"cors_origins"`
	CORSAllowCredentials bool          `yaml:"cors_allow_credentials"`
	TLS                  TLSConfig     `yaml:"tls"`
}

// TLSConfig enables https on the API. Without a cert/key pair a self-signed
// certificate for Hosts is generated at start when AutoGenerate is set.
type TLSConfig struct {
	Enabled      bool     `yaml:"enabled"`
	CertFile     string   `yaml:"cert_file"`
	KeyFile      string   `yaml:"key_file"`
	ClientCAFile string   `yaml:"client_ca_file"`
	AutoGenerate bool     `yaml:"auto_generate"`
	Hosts        []string `yaml:"hosts"`
}

// EngineConfig bounds the algorithms
type EngineConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxPasses     int     `yaml:"max_passes"`
	TopK          int     `yaml:"top_k"`
}

// GatewayConfig configures the compute slot and where computations run
type GatewayConfig struct {
	Runner      string        `yaml:"runner"`
	Policy      string        `yaml:"policy"`
	Timeout     time.Duration `yaml:"timeout"`
	PoolWorkers int           `yaml:"pool_workers"`
	MaxNodes    int           `yaml:"max_nodes"`
	MaxLinks    int           `yaml:"max_links"`
}

// TransportConfig selects and addresses the remote worker transport. The same
// section configures both the worker (listening side) and the remote runner.
type TransportConfig struct {
	Kind        string        `yaml:"kind"`
	Addr        string        `yaml:"addr"`
	NATSURL     string        `yaml:"nats_url"`
	Subject     string        `yaml:"subject"`
	HTTPURL     string        `yaml:"http_url"`
	HTTPToken   string        `yaml:"http_token"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	HTTPCAFile  string        `yaml:"http_ca_file"`
	Workers     int           `yaml:"workers"`
}

// SnapshotConfig configures where the latest result is persisted. An empty
// path keeps it in memory only.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures bearer token authentication for the API
type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// TelemetryConfig configures tracing
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LogConfig configures the default logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    64 << 20,
			TLS: TLSConfig{
				Hosts: []string{"localhost", "127.0.0.1"},
			},
		},
		Engine: EngineConfig{
			MaxIterations: 200,
			Tolerance:     1e-6,
			MaxPasses:     1000,
			TopK:          5,
		},
		Gateway: GatewayConfig{
			Runner:      RunnerInProcess,
			Policy:      "queue",
			PoolWorkers: 1,
			MaxNodes:    validation.DefaultMaxNodes,
			MaxLinks:    validation.DefaultMaxLinks,
		},
		Transport: TransportConfig{
			Kind:        TransportMangos,
			Addr:        "tcp://127.0.0.1:7070",
			NATSURL:     "nats://127.0.0.1:4222",
			Subject:     "graphmetrics",
			HTTPURL:     "http://127.0.0.1:8080",
			HTTPTimeout: 5 * time.Minute,
			Workers:     2,
		},
		Auth: AuthConfig{
			Issuer:   "graphmetrics",
			TokenTTL: time.Hour,
		},
		Telemetry: TelemetryConfig{
			Exporter:    "stdout",
			ServiceName: "graphmetrics",
			SampleRatio: 1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (skipped when empty) over the defaults, applies environment
// overrides and validates
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg, rejecting unknown keys
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, validation.NewConfigValidator("server").
		Required("addr", c.Server.Addr).
		MinDuration("shutdown_timeout", c.Server.ShutdownTimeout, time.Second).
		Positive("max_body_bytes", int(c.Server.MaxBodyBytes)).
		When(c.Server.TLS.Enabled && !c.Server.TLS.AutoGenerate, func(v *validation.ConfigValidator) {
			v.Required("tls.cert_file", c.Server.TLS.CertFile)
			v.Required("tls.key_file", c.Server.TLS.KeyFile)
		}).
		Errors()...)

	errs = append(errs, validation.NewConfigValidator("engine").
		Positive("max_iterations", c.Engine.MaxIterations).
		PositiveFloat("tolerance", c.Engine.Tolerance).
		Positive("max_passes", c.Engine.MaxPasses).
		NonNegative("top_k", c.Engine.TopK).
		Errors()...)

	errs = append(errs, validation.NewConfigValidator("gateway").
		OneOf("runner", c.Gateway.Runner, []string{RunnerInProcess, RunnerPool, RunnerRemote}).
		OneOf("policy", c.Gateway.Policy, []string{"queue", "reject"}).
		MinDuration("timeout", c.Gateway.Timeout, 0).
		When(c.Gateway.Runner == RunnerPool, func(v *validation.ConfigValidator) {
			v.RangeInt("pool_workers", c.Gateway.PoolWorkers, 1, 1024)
		}).
		Positive("max_nodes", c.Gateway.MaxNodes).
		Positive("max_links", c.Gateway.MaxLinks).
		Errors()...)

	errs = append(errs, validation.NewConfigValidator("transport").
		OneOf("kind", c.Transport.Kind, []string{TransportMangos, TransportNATS, TransportHTTP, TransportZMQ}).
		When(c.Transport.Kind == TransportMangos || c.Transport.Kind == TransportZMQ, func(v *validation.ConfigValidator) {
			v.Required("addr", c.Transport.Addr)
		}).
		When(c.Transport.Kind == TransportNATS, func(v *validation.ConfigValidator) {
			v.URL("nats_url", c.Transport.NATSURL, "nats", "tls")
			v.Required("subject", c.Transport.Subject)
		}).
		When(c.Transport.Kind == TransportHTTP, func(v *validation.ConfigValidator) {
			v.URL("http_url", c.Transport.HTTPURL, "http", "https")
		}).
		Positive("workers", c.Transport.Workers).
		Errors()...)

	errs = append(errs, validation.NewConfigValidator("auth").
		When(c.Auth.Enabled, func(v *validation.ConfigValidator) {
			v.MinLength("jwt_secret", c.Auth.JWTSecret, MinJWTSecretLength)
			v.MinDuration("token_ttl", c.Auth.TokenTTL, time.Minute)
		}).
		Errors()...)

	errs = append(errs, validation.NewConfigValidator("telemetry").
		When(c.Telemetry.Enabled, func(v *validation.ConfigValidator) {
			v.OneOf("exporter", c.Telemetry.Exporter, []string{"stdout", "otlp"})
			v.Required("service_name", c.Telemetry.ServiceName)
			v.RangeFloat("sample_ratio", c.Telemetry.SampleRatio, 0, 1)
		}).
		When(c.Telemetry.Enabled && c.Telemetry.Exporter == "otlp", func(v *validation.ConfigValidator) {
			v.Required("endpoint", c.Telemetry.Endpoint)
		}).
		Errors()...)

	errs = append(errs, validation.NewConfigValidator("log").
		OneOf("format", c.Log.Format, []string{"json", "text"}).
		Errors()...)

	return errors.Join(errs...)
}
