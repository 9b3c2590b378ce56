package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string // explicit origins, or "*" for any
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // preflight cache, seconds
}

// DefaultCORSConfig allows no cross-origin requests
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		MaxAge:         86400,
	}
}

// NewCORSConfig returns the default configuration with the given origins
func NewCORSConfig(origins []string, allowCredentials bool) *CORSConfig {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = origins
	cfg.AllowCredentials = allowCredentials
	return cfg
}

// AllowsAnyOrigin reports whether the wildcard origin is configured
func (c *CORSConfig) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (c *CORSConfig) allows(origin string) bool {
	if c == nil || origin == "" {
		return false
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// CORS creates middleware that handles Cross-Origin Resource Sharing. The
// request origin is echoed rather than "*" so credentials keep working.
func CORS(config *CORSConfig) func(http.Handler) http.Handler {
	methods := "GET, POST, OPTIONS"
	headers := "Content-Type, Authorization, " + RequestIDHeader
	if config != nil {
		if len(config.AllowedMethods) > 0 {
			methods = strings.Join(config.AllowedMethods, ", ")
		}
		if len(config.AllowedHeaders) > 0 {
			headers = strings.Join(config.AllowedHeaders, ", ")
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := config.allows(origin)

			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				if config.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if config.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
