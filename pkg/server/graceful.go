// Package server runs the HTTP API with signal-driven reload and an ordered,
// bounded shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// ConfigReloadFunc is a function that reloads configuration
type ConfigReloadFunc func() error

// ShutdownHook releases a resource after the listener has drained
type ShutdownHook func(ctx context.Context) error

// DefaultShutdownTimeout bounds Shutdown when no timeout is configured
const DefaultShutdownTimeout = 30 * time.Second

// GracefulServer wraps an HTTP server with graceful shutdown capabilities
type GracefulServer struct {
	server          *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error

	mu             sync.RWMutex
	configReloadFn ConfigReloadFunc
	hooks          []namedHook
	addr           net.Addr
}

type namedHook struct {
	name string
	fn   ShutdownHook
}

// Option configures a GracefulServer
type Option func(*GracefulServer)

// WithTimeouts sets the read and write timeouts of the HTTP server. A write
// timeout must cover the longest computation a synchronous call may wait for.
func WithTimeouts(read, write time.Duration) Option {
	return func(gs *GracefulServer) {
		gs.server.ReadTimeout = read
		gs.server.WriteTimeout = write
	}
}

// WithTLS serves https with cfg. The configuration must carry a certificate.
func WithTLS(cfg *tls.Config) Option {
	return func(gs *GracefulServer) {
		gs.server.TLSConfig = cfg
	}
}

// WithShutdownTimeout bounds the drain and the shutdown hooks
func WithShutdownTimeout(d time.Duration) Option {
	return func(gs *GracefulServer) { gs.shutdownTimeout = d }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(gs *GracefulServer) { gs.logger = l }
}

// NewGracefulServer creates a new graceful HTTP server
func NewGracefulServer(addr string, handler http.Handler, opts ...Option) *GracefulServer {
	gs := &GracefulServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		shutdownTimeout: DefaultShutdownTimeout,
		shutdownCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(gs)
	}
	if gs.logger == nil {
		gs.logger = logging.NewNopLogger()
	}
	gs.logger = gs.logger.With(logging.Component("server"))
	return gs
}

// OnShutdown registers a hook run after the HTTP server has stopped. Hooks run
// in registration order.
func (gs *GracefulServer) OnShutdown(name string, fn ShutdownHook) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, namedHook{name: name, fn: fn})
}

// OnDrain registers fn to run when shutdown begins, before connections have
// drained. Long-lived handlers such as event streams use it to end early.
func (gs *GracefulServer) OnDrain(fn func()) {
	gs.server.RegisterOnShutdown(fn)
}

// Run listens on the configured address and serves until ctx ends, then shuts
// down gracefully
func (gs *GracefulServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", gs.server.Addr, err)
	}
	return gs.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends or the server fails. SIGHUP triggers
// ReloadConfig while serving.
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	gs.mu.Lock()
	gs.addr = ln.Addr()
	gs.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if gs.server.TLSConfig != nil {
			gs.logger.Info("starting HTTPS server", logging.String("addr", ln.Addr().String()))
			err = gs.server.ServeTLS(ln, "", "")
		} else {
			gs.logger.Info("starting HTTP server", logging.String("addr", ln.Addr().String()))
			err = gs.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	for {
		select {
		case <-sigCh:
			gs.logger.Info("received SIGHUP, reloading configuration")
			_ = gs.ReloadConfig()

		case err, ok := <-errCh:
			if ok {
				_ = gs.Shutdown()
				return err
			}
			return gs.Shutdown()

		case <-ctx.Done():
			gs.logger.Info("shutdown requested", logging.String("reason", context.Cause(ctx).Error()))
			return gs.Shutdown()
		}
	}
}

// Addr returns the listening address once serving
func (gs *GracefulServer) Addr() net.Addr {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.addr
}

// Shutdown drains the HTTP server and runs the shutdown hooks, all within the
// shutdown timeout. Only the first call does anything; later calls return its
// error.
func (gs *GracefulServer) Shutdown() error {
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), gs.shutdownTimeout)
		defer cancel()

		gs.logger.Info("initiating graceful shutdown", logging.Duration("timeout", gs.shutdownTimeout))

		var errs []error
		if err := gs.server.Shutdown(ctx); err != nil {
			gs.logger.Error("error during HTTP shutdown", logging.Error(err))
			errs = append(errs, err)
		}

		gs.mu.RLock()
		hooks := append([]namedHook(nil), gs.hooks...)
		gs.mu.RUnlock()

		for _, h := range hooks {
			if err := h.fn(ctx); err != nil {
				gs.logger.Error("shutdown hook failed", logging.String("hook", h.name), logging.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			}
		}

		gs.shutdownErr = errors.Join(errs...)
		if gs.shutdownErr == nil {
			gs.logger.Info("server shutdown complete")
		}
	})
	return gs.shutdownErr
}

// IsShuttingDown returns true if shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel returns a channel that closes when shutdown is initiated
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}

// SetConfigReloadFunc sets the function to call when configuration reload is triggered
func (gs *GracefulServer) SetConfigReloadFunc(fn ConfigReloadFunc) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.configReloadFn = fn
}

// ReloadConfig triggers a configuration reload
func (gs *GracefulServer) ReloadConfig() error {
	gs.mu.RLock()
	reloadFn := gs.configReloadFn
	gs.mu.RUnlock()

	if reloadFn == nil {
		gs.logger.Warn("configuration reload requested, but no reload function configured")
		return nil
	}

	if err := reloadFn(); err != nil {
		gs.logger.Error("configuration reload failed", logging.Error(err))
		return err
	}

	gs.logger.Info("configuration reload complete")
	return nil
}
