package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "GRAPHMETRICS_"

// ApplyEnv overrides fields from GRAPHMETRICS_* variables. Unparseable values
// are ignored and the current value kept. LOG_LEVEL and LOG_FORMAT are also
// honored for the log section.
func (c *Config) ApplyEnv() {
	c.Server.Addr = getEnv("ADDR", c.Server.Addr)
	c.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.Server.CORSOrigins = splitAndTrim(origins, ",")
	}
	c.Server.CORSAllowCredentials = getEnvBool("CORS_ALLOW_CREDENTIALS", c.Server.CORSAllowCredentials)
	c.Server.TLS.Enabled = getEnvBool("TLS_ENABLED", c.Server.TLS.Enabled)
	c.Server.TLS.CertFile = getEnv("TLS_CERT_FILE", c.Server.TLS.CertFile)
	c.Server.TLS.KeyFile = getEnv("TLS_KEY_FILE", c.Server.TLS.KeyFile)

	c.Engine.MaxIterations = getEnvInt("MAX_ITERATIONS", c.Engine.MaxIterations)
	c.Engine.Tolerance = getEnvFloat("TOLERANCE", c.Engine.Tolerance)
	c.Engine.MaxPasses = getEnvInt("MAX_PASSES", c.Engine.MaxPasses)
	c.Engine.TopK = getEnvInt("TOP_K", c.Engine.TopK)

	c.Gateway.Runner = getEnv("RUNNER", c.Gateway.Runner)
	c.Gateway.Policy = getEnv("POLICY", c.Gateway.Policy)
	c.Gateway.Timeout = getEnvDuration("TIMEOUT", c.Gateway.Timeout)
	c.Gateway.PoolWorkers = getEnvInt("POOL_WORKERS", c.Gateway.PoolWorkers)
	c.Gateway.MaxNodes = getEnvInt("MAX_NODES", c.Gateway.MaxNodes)
	c.Gateway.MaxLinks = getEnvInt("MAX_LINKS", c.Gateway.MaxLinks)

	c.Transport.Kind = getEnv("TRANSPORT", c.Transport.Kind)
	c.Transport.Addr = getEnv("TRANSPORT_ADDR", c.Transport.Addr)
	c.Transport.NATSURL = getEnv("NATS_URL", c.Transport.NATSURL)
	c.Transport.Subject = getEnv("NATS_SUBJECT", c.Transport.Subject)
	c.Transport.HTTPURL = getEnv("HTTP_URL", c.Transport.HTTPURL)
	c.Transport.HTTPToken = getEnv("HTTP_TOKEN", c.Transport.HTTPToken)
	c.Transport.HTTPCAFile = getEnv("HTTP_CA_FILE", c.Transport.HTTPCAFile)
	c.Transport.Workers = getEnvInt("TRANSPORT_WORKERS", c.Transport.Workers)

	c.Snapshot.Path = getEnv("SNAPSHOT_PATH", c.Snapshot.Path)

	c.Auth.Enabled = getEnvBool("AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)

	c.Telemetry.Enabled = getEnvBool("TRACING_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.Exporter = getEnv("TRACING_EXPORTER", c.Telemetry.Exporter)
	c.Telemetry.Endpoint = getEnv("OTLP_ENDPOINT", c.Telemetry.Endpoint)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer environment variable with a default value
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
