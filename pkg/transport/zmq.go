//go:build zmq
// +build zmq

package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// ZMQName is the transport label used in logs and metrics
const ZMQName = "zmq"

// zmqPollInterval is how often blocked receives check for cancellation
const zmqPollInterval = 100 * time.Millisecond

// ZMQServer answers compute_metrics requests on a REP socket, one at a time.
// ZeroMQ sockets are not safe for concurrent use, so cancellation is not
// supported over this transport.
type ZMQServer struct {
	addr    string
	handler Handler
	logger  logging.Logger
	obs     observer

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewZMQServer creates a server bound to addr (e.g. "tcp://*:7071")
func NewZMQServer(addr string, handler Handler, opts Options) *ZMQServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZMQServer{
		addr:    addr,
		handler: handler,
		logger:  opts.logger(ZMQName),
		obs:     observer{name: ZMQName, metrics: opts.Metrics},
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start binds the socket and serves in the background
func (s *ZMQServer) Start() error {
	sock, err := zmq.NewSocket(zmq.REP)
	if err != nil {
		return fmt.Errorf("failed to create REP socket: %w", err)
	}
	if err := sock.SetRcvtimeo(zmqPollInterval); err != nil {
		sock.Close()
		return fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := sock.Bind(s.addr); err != nil {
		sock.Close()
		return fmt.Errorf("failed to bind REP socket: %w", err)
	}
	s.logger.Info("zmq worker bound", logging.String("addr", s.addr))

	s.started.Store(true)
	go s.serve(sock)
	return nil
}

func (s *ZMQServer) serve(sock *zmq.Socket) {
	defer close(s.done)
	defer sock.Close()

	for s.ctx.Err() == nil {
		frame, err := sock.RecvBytes(0)
		if err != nil {
			// Timeout or error, check for shutdown and continue
			continue
		}

		var reply *Envelope
		env, err := DecodeFrame(frame)
		switch {
		case err != nil:
			s.obs.failed("decode")
			reply = errorEnvelope("", err, false)
		case env.Type != MsgComputeMetrics:
			s.obs.received(env.Type, len(frame))
			reply = errorEnvelope(env.ID, fmt.Errorf("%w: %s", ErrUnexpectedMessage, env.Type), false)
		default:
			s.obs.received(env.Type, len(frame))
			reply = serve(s.ctx, s.handler, env, nil, s.logger)
		}

		out, err := EncodeFrame(reply)
		if err != nil {
			s.obs.failed("encode")
			continue
		}
		if _, err := sock.SendBytes(out, 0); err != nil {
			s.obs.failed("send")
			s.logger.Warn("send failed", logging.RequestID(reply.ID), logging.Error(err))
			continue
		}
		s.obs.sent(reply.Type, len(out))
	}
}

// Close stops serving and waits for the socket to close
func (s *ZMQServer) Close() error {
	s.once.Do(s.cancel)
	if s.started.Load() {
		<-s.done
	}
	return nil
}

// ZMQClient sends computations over REQ sockets. Every call uses a fresh
// socket so an abandoned request never leaves the REQ state machine stuck.
type ZMQClient struct {
	addr   string
	logger logging.Logger
	obs    observer
}

// DialZMQ creates a client for the worker at addr (e.g. "tcp://localhost:7071")
func DialZMQ(addr string, opts Options) (*ZMQClient, error) {
	return &ZMQClient{
		addr:   addr,
		logger: opts.logger(ZMQName),
		obs:    observer{name: ZMQName, metrics: opts.Metrics},
	}, nil
}

// Name implements Client
func (c *ZMQClient) Name() string { return ZMQName }

// Compute implements Client
func (c *ZMQClient) Compute(ctx context.Context, requestID string, request engine.Request, _ engine.ProgressFunc) (*engine.Result, error) {
	sock, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		return nil, fmt.Errorf("failed to create REQ socket: %w", err)
	}
	defer sock.Close()

	if err := sock.SetLinger(0); err != nil {
		return nil, err
	}
	if err := sock.SetRcvtimeo(zmqPollInterval); err != nil {
		return nil, err
	}
	if err := sock.Connect(c.addr); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}

	env, err := NewEnvelope(MsgComputeMetrics, requestID, request)
	if err != nil {
		return nil, err
	}
	frame, err := EncodeFrame(env)
	if err != nil {
		return nil, err
	}
	if _, err := sock.SendBytes(frame, 0); err != nil {
		c.obs.failed("send")
		return nil, fmt.Errorf("send compute_metrics: %w", err)
	}
	c.obs.sent(env.Type, len(frame))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := sock.RecvBytes(0)
		if err != nil {
			// Timeout, wait again unless ctx ended
			continue
		}

		reply, err := DecodeFrame(data)
		if err != nil {
			c.obs.failed("decode")
			return nil, err
		}
		c.obs.received(reply.Type, len(data))
		return decodeResult(reply, requestID)
	}
}

// Close implements Client; sockets are per call
func (c *ZMQClient) Close() error { return nil }
