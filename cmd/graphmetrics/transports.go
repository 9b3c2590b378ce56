package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/dd0wney/cluso-graphmetrics/pkg/config"
	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/gateway"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
	"github.com/dd0wney/cluso-graphmetrics/pkg/parallel"
	gmtls "github.com/dd0wney/cluso-graphmetrics/pkg/tls"
	"github.com/dd0wney/cluso-graphmetrics/pkg/transport"
)

// workerServer is the listening side of a transport
type workerServer interface {
	Start() error
	Close() error
}

var errHTTPWorker = errors.New("the http transport has no worker mode; run `graphmetrics serve` with the inprocess runner instead")

// closers runs cleanup functions in reverse order
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newRunner builds the execution substrate named by cfg.Gateway.Runner. The
// returned client is non-nil only for remote runners.
func newRunner(cfg *config.Config, logger logging.Logger, reg *metrics.Registry) (gateway.Runner, transport.Client, closers, error) {
	opts := engineOptions(cfg.Engine, logger)
	var cleanup closers

	switch cfg.Gateway.Runner {
	case config.RunnerPool:
		pool, err := parallel.NewWorkerPool(cfg.Gateway.PoolWorkers, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup.add(func() error { pool.Close(); return nil })
		return gateway.NewPoolRunner(pool, opts...), nil, cleanup, nil

	case config.RunnerRemote:
		clientTLS, err := gmtls.ClientConfig(cfg.Transport.HTTPCAFile)
		if err != nil {
			return nil, nil, nil, err
		}
		client, err := dialClient(cfg.Transport, transport.Options{Logger: logger, Metrics: reg, TLS: clientTLS})
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup.add(client.Close)
		return gateway.NewRemoteRunner(client), client, cleanup, nil

	default:
		return gateway.NewInProcessRunner(opts...), nil, cleanup, nil
	}
}

// dialClient connects to the workers configured in cfg
func dialClient(cfg config.TransportConfig, opts transport.Options) (transport.Client, error) {
	switch cfg.Kind {
	case config.TransportMangos:
		return transport.DialMangos(cfg.Addr, opts)
	case config.TransportNATS:
		return transport.DialNATS(cfg.NATSURL, cfg.Subject, opts)
	case config.TransportHTTP:
		return transport.NewHTTPClient(cfg.HTTPURL, cfg.HTTPToken, cfg.HTTPTimeout, opts), nil
	case config.TransportZMQ:
		return dialZMQ(cfg.Addr, opts)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Kind)
	}
}

// newWorkerServer builds the listening side for cfg.Kind
func newWorkerServer(cfg config.TransportConfig, natsURL string, handler transport.Handler, opts transport.Options) (workerServer, error) {
	switch cfg.Kind {
	case config.TransportMangos:
		return transport.NewMangosServer(cfg.Addr, handler, cfg.Workers, opts), nil
	case config.TransportNATS:
		return transport.NewNATSServer(natsURL, cfg.Subject, handler, opts)
	case config.TransportZMQ:
		return newZMQServer(cfg.Addr, handler, opts)
	case config.TransportHTTP:
		return nil, errHTTPWorker
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Kind)
	}
}

// pingRequest is the smallest request a worker accepts
func pingRequest() engine.Request {
	req := engine.NewRequest()
	req.Nodes = []engine.Node{{ID: "ping"}}
	return req
}

// pingWorker runs a one-node computation through client
func pingWorker(client transport.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := client.Compute(ctx, "health-"+strconv.FormatInt(time.Now().UnixNano(), 36), pingRequest(), nil)
		return err
	}
}

// startEmbeddedNATS runs a NATS server on the host and port of natsURL and
// returns the URL clients should use
func startEmbeddedNATS(natsURL string, logger logging.Logger) (*natsserver.Server, string, error) {
	u, err := url.Parse(natsURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse nats url: %w", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil, "", fmt.Errorf("nats url %s: %w", natsURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, "", fmt.Errorf("nats url %s: bad port: %w", natsURL, err)
	}

	srv, err := natsserver.NewServer(&natsserver.Options{Host: host, Port: port, NoSigs: true})
	if err != nil {
		return nil, "", fmt.Errorf("embedded nats: %w", err)
	}
	srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, "", errors.New("embedded nats did not become ready")
	}
	logger.Info("embedded NATS server started", logging.String("url", srv.ClientURL()))
	return srv, srv.ClientURL(), nil
}
