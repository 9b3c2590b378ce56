package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dd0wney/cluso-graphmetrics/pkg/api"
	"github.com/dd0wney/cluso-graphmetrics/pkg/api/middleware"
	"github.com/dd0wney/cluso-graphmetrics/pkg/auth"
	"github.com/dd0wney/cluso-graphmetrics/pkg/config"
	"github.com/dd0wney/cluso-graphmetrics/pkg/gateway"
	"github.com/dd0wney/cluso-graphmetrics/pkg/health"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
	"github.com/dd0wney/cluso-graphmetrics/pkg/server"
	"github.com/dd0wney/cluso-graphmetrics/pkg/snapshot"
	"github.com/dd0wney/cluso-graphmetrics/pkg/telemetry"
	gmtls "github.com/dd0wney/cluso-graphmetrics/pkg/tls"
	"github.com/dd0wney/cluso-graphmetrics/pkg/validation"
)

const (
	systemMetricsInterval = 15 * time.Second
	healthCheckTimeout    = 5 * time.Second
	certificateWarning    = 30 * 24 * time.Hour
)

func newServeCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metrics API",
		Long: `Serve the REST, GraphQL and event stream API in front of a compute gateway.
Computations run in process, on a worker pool, or on remote workers reached
over the configured transport.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), g, cfg, cmd.Flags())
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address")
	f.String("runner", "", "where computations run: inprocess, pool or remote")
	f.String("policy", "", "what a call does while another runs: queue or reject")
	f.Duration("timeout", 0, "per computation timeout, 0 for none")
	f.String("transport", "", "remote runner transport: mangos, nats, http or zmq")
	f.String("transport-addr", "", "mangos or zmq worker address")
	f.String("nats-url", "", "NATS server URL")
	f.String("subject", "", "NATS subject prefix")
	f.String("snapshot", "", "file that persists the latest result")
	return cmd
}

func runServe(ctx context.Context, g *globalOptions, cfg *config.Config, flags *pflag.FlagSet) error {
	logger := newLogger(cfg.Log)
	logger.Info("graphmetrics starting",
		logging.String("version", version),
		logging.Runner(cfg.Gateway.Runner),
		logging.String("addr", cfg.Server.Addr),
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, version, nil)
	if err != nil {
		return err
	}

	reg := metrics.DefaultRegistry()

	store, err := snapshot.NewStore(cfg.Snapshot.Path)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	if snap, ok := store.Latest(); ok {
		logger.Info("restored latest result",
			logging.RequestID(snap.RequestID),
			logging.Int64("seq", int64(snap.Seq)),
			logging.Path(store.Path()),
		)
	}

	runner, client, cleanup, err := newRunner(cfg, logger, reg)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}

	policy, err := gateway.ParseSlotPolicy(cfg.Gateway.Policy)
	if err != nil {
		_ = cleanup.close()
		_ = shutdownTracing(context.Background())
		return err
	}

	gw := gateway.New(runner,
		gateway.WithPolicy(policy),
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithLimits(validation.Limits{MaxNodes: cfg.Gateway.MaxNodes, MaxLinks: cfg.Gateway.MaxLinks}),
		gateway.WithStore(store),
		gateway.WithMetrics(reg),
		gateway.WithLogger(logger),
	)

	checker := health.NewHealthChecker(health.WithCheckTimeout(healthCheckTimeout))
	checker.RegisterCheck("gateway", health.GatewayCheck(gw.RunnerName(), gw.Busy))
	checker.RegisterCheck("snapshot", health.SnapshotCheck(func() (uint64, time.Time, bool) {
		snap, ok := store.Latest()
		if !ok {
			return 0, time.Time{}, false
		}
		return snap.Seq, snap.CompletedAt, true
	}, 0))
	checker.RegisterCheck("memory", health.MemoryCheck())
	checker.RegisterLivenessCheck("process", health.SimpleCheck("process"))
	if client != nil {
		checker.RegisterReadinessCheck("worker", health.WorkerCheck(client.Name(), pingWorker(client)))
	} else {
		checker.RegisterReadinessCheck("gateway", health.GatewayCheck(gw.RunnerName(), gw.Busy))
	}

	apiOpts := []api.Option{
		api.WithMetrics(reg),
		api.WithHealthChecker(checker),
		api.WithLogger(logger),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		api.WithVersion(version),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		apiOpts = append(apiOpts, api.WithCORS(middleware.NewCORSConfig(cfg.Server.CORSOrigins, cfg.Server.CORSAllowCredentials)))
	}
	if cfg.Auth.Enabled {
		jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
		if err != nil {
			_ = cleanup.close()
			_ = shutdownTracing(context.Background())
			return err
		}
		apiOpts = append(apiOpts, api.WithAuth(jwtManager))
	}

	apiServer, err := api.NewServer(gw, apiOpts...)
	if err != nil {
		_ = cleanup.close()
		_ = shutdownTracing(context.Background())
		return err
	}

	serverOpts := []server.Option{
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithLogger(logger),
	}
	if cfg.Server.TLS.Enabled {
		tlsCfg, err := serverTLS(cfg.Server.TLS, checker, logger)
		if err != nil {
			_ = cleanup.close()
			_ = shutdownTracing(context.Background())
			return err
		}
		serverOpts = append(serverOpts, server.WithTLS(tlsCfg))
	}

	gs := server.NewGracefulServer(cfg.Server.Addr, apiServer.Handler(), serverOpts...)
	gs.OnDrain(apiServer.Close)
	gs.OnShutdown("gateway", func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			gw.Close()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("computations still running: %w", ctx.Err())
		}
	})
	gs.OnShutdown("runner", func(context.Context) error { return cleanup.close() })
	gs.OnShutdown("telemetry", func(ctx context.Context) error { return shutdownTracing(ctx) })

	gs.SetConfigReloadFunc(func() error {
		next, err := g.load(flags)
		if err != nil {
			return err
		}
		logger.SetLevel(logging.ParseLevel(next.Log.Level))
		logger.Info("configuration reloaded", logging.String("log_level", next.Log.Level))
		return nil
	})

	go refreshSystemMetrics(ctx, reg)

	if err := gs.Run(ctx); err != nil {
		// Run fails before serving when the address is taken; hooks still
		// have to release the runner.
		_ = gs.Shutdown()
		return err
	}
	return nil
}

// serverTLS loads or generates the API certificate and registers its expiry
// as a health check
func serverTLS(cfg config.TLSConfig, checker *health.HealthChecker, logger logging.Logger) (*tls.Config, error) {
	tlsCfg, err := gmtls.ServerConfig(gmtls.Config{
		CertFile:     cfg.CertFile,
		KeyFile:      cfg.KeyFile,
		ClientCAFile: cfg.ClientCAFile,
		AutoGenerate: cfg.AutoGenerate,
		Hosts:        cfg.Hosts,
	})
	if err != nil {
		return nil, err
	}

	info, err := gmtls.Info(tlsCfg.Certificates[0])
	if err != nil {
		return nil, err
	}
	if cfg.CertFile == "" {
		logger.Warn("serving a generated self-signed certificate", logging.Any("hosts", cfg.Hosts))
	}
	logger.Info("TLS enabled",
		logging.String("subject", info.Subject),
		logging.String("not_after", info.NotAfter.UTC().Format(time.RFC3339)),
		logging.Bool("mutual", cfg.ClientCAFile != ""),
	)
	checker.RegisterCheck("certificate", health.CertificateCheck(info.NotAfter, certificateWarning))
	return tlsCfg, nil
}

// refreshSystemMetrics keeps the uptime, goroutine and memory gauges current
func refreshSystemMetrics(ctx context.Context, reg *metrics.Registry) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	reg.UpdateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.UpdateSystemMetrics()
		}
	}
}
