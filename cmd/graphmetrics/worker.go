package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-graphmetrics/pkg/config"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
	"github.com/dd0wney/cluso-graphmetrics/pkg/telemetry"
	"github.com/dd0wney/cluso-graphmetrics/pkg/transport"
)

func newWorkerCmd(g *globalOptions) *cobra.Command {
	var embeddedNATS bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a remote compute worker",
		Long: `Run a compute worker that answers compute_metrics messages over mangos,
NATS or ZeroMQ. Gateways reach it with the remote runner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd.Flags())
			if err != nil {
				return err
			}
			return runWorker(cmd, cfg, embeddedNATS)
		},
	}

	f := cmd.Flags()
	f.String("transport", "", "transport: mangos, nats or zmq")
	f.String("transport-addr", "", "mangos or zmq listen address")
	f.String("nats-url", "", "NATS server URL")
	f.String("subject", "", "NATS subject prefix")
	f.Int("workers", 0, "concurrent computations (mangos)")
	f.BoolVar(&embeddedNATS, "embedded-nats", false, "start a NATS server on --nats-url inside the worker")
	return cmd
}

func runWorker(cmd *cobra.Command, cfg *config.Config, embeddedNATS bool) error {
	ctx := cmd.Context()
	logger := newLogger(cfg.Log)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, version, nil)
	if err != nil {
		return err
	}

	var cleanup closers
	cleanup.add(func() error { return shutdownTracing(context.Background()) })
	defer func() {
		if err := cleanup.close(); err != nil {
			logger.Error("worker shutdown", logging.Error(err))
		}
	}()

	natsURL := cfg.Transport.NATSURL
	if embeddedNATS {
		if cfg.Transport.Kind != config.TransportNATS {
			return fmt.Errorf("--embedded-nats needs the nats transport, not %q", cfg.Transport.Kind)
		}
		srv, url, err := startEmbeddedNATS(natsURL, logger)
		if err != nil {
			return err
		}
		cleanup.add(func() error { srv.Shutdown(); return nil })
		natsURL = url
	}

	opts := transport.Options{Logger: logger, Metrics: metrics.DefaultRegistry()}
	handler := transport.EngineHandler(engineOptions(cfg.Engine, logger)...)

	ws, err := newWorkerServer(cfg.Transport, natsURL, handler, opts)
	if err != nil {
		return err
	}
	if err := ws.Start(); err != nil {
		return err
	}
	cleanup.add(ws.Close)

	logger.Info("worker ready",
		logging.Transport(cfg.Transport.Kind),
		logging.String("addr", workerAddr(cfg.Transport, natsURL)),
		logging.String("version", version),
	)

	<-ctx.Done()
	logger.Info("worker stopping")
	return nil
}

func workerAddr(cfg config.TransportConfig, natsURL string) string {
	if cfg.Kind == config.TransportNATS {
		return natsURL + " " + cfg.Subject
	}
	return cfg.Addr
}
