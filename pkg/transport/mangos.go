package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// Register all transports (tcp, ipc, inproc, ws)
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// MangosName is the transport label used in logs and metrics
const MangosName = "mangos"

// DefaultCancelTimeout bounds how long a client waits for a cancel_metrics
// acknowledgement
const DefaultCancelTimeout = time.Second

// cancelAck is the payload of the reply to cancel_metrics
type cancelAck struct {
	Canceled bool `json:"canceled"`
}

// MangosServer answers compute_metrics requests on a REP socket. Each worker
// owns one socket context, so a cancel_metrics request can be served while
// another worker is computing.
type MangosServer struct {
	addr     string
	handler  Handler
	workers  int
	logger   logging.Logger
	obs      observer
	inflight *inflight

	sock     mangos.Socket
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopOnce sync.Once
}

// NewMangosServer creates a server that listens on addr (e.g. "tcp://*:7070").
// At least two workers are used.
func NewMangosServer(addr string, handler Handler, workers int, opts Options) *MangosServer {
	if workers < 2 {
		workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MangosServer{
		addr:     addr,
		handler:  handler,
		workers:  workers,
		logger:   opts.logger(MangosName),
		obs:      observer{name: MangosName, metrics: opts.Metrics},
		inflight: newInflight(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start binds the socket and launches the workers
func (s *MangosServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("mangos server already running")
	}
	if s.ctx.Err() != nil {
		return ErrClosed
	}

	sock, err := rep.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create REP socket: %w", err)
	}
	if err := sock.Listen(s.addr); err != nil {
		sock.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	for i := 0; i < s.workers; i++ {
		mctx, err := sock.OpenContext()
		if err != nil {
			sock.Close()
			return fmt.Errorf("failed to open socket context: %w", err)
		}
		s.wg.Add(1)
		go s.work(mctx)
	}

	s.sock = sock
	s.running = true
	s.logger.Info("mangos worker listening", logging.String("addr", s.addr), logging.Int("workers", s.workers))
	return nil
}

func (s *MangosServer) work(mctx mangos.Context) {
	defer s.wg.Done()
	defer mctx.Close()

	for {
		frame, err := mctx.Recv()
		if err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			s.obs.failed("recv")
			s.logger.Warn("receive failed", logging.Error(err))
			continue
		}

		reply := s.handle(frame)
		out, err := EncodeFrame(reply)
		if err != nil {
			s.obs.failed("encode")
			s.logger.Error("failed to encode reply", logging.RequestID(reply.ID), logging.Error(err))
			continue
		}
		if err := mctx.Send(out); err != nil {
			if errors.Is(err, mangos.ErrClosed) {
				return
			}
			s.obs.failed("send")
			s.logger.Warn("send failed", logging.RequestID(reply.ID), logging.Error(err))
			continue
		}
		s.obs.sent(reply.Type, len(out))
	}
}

func (s *MangosServer) handle(frame []byte) *Envelope {
	env, err := DecodeFrame(frame)
	if err != nil {
		s.obs.failed("decode")
		return errorEnvelope("", err, false)
	}
	s.obs.received(env.Type, len(frame))

	switch env.Type {
	case MsgComputeMetrics:
		ctx, done := s.inflight.start(s.ctx, env.ID)
		defer done()
		return serve(ctx, s.handler, env, nil, s.logger)

	case MsgCancelMetrics:
		canceled := s.inflight.cancel(env.ID)
		s.logger.Info("cancel requested", logging.RequestID(env.ID), logging.Bool("running", canceled))
		ack, err := NewEnvelope(MsgCancelMetrics, env.ID, cancelAck{Canceled: canceled})
		if err != nil {
			return errorEnvelope(env.ID, err, false)
		}
		return ack

	default:
		return errorEnvelope(env.ID, fmt.Errorf("%w: %s", ErrUnexpectedMessage, env.Type), false)
	}
}

// Close stops the workers and cancels running computations
func (s *MangosServer) Close() error {
	s.stopOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.sock != nil {
			s.sock.Close()
		}
		s.running = false
		s.mu.Unlock()
	})
	s.wg.Wait()
	return nil
}

// MangosClient sends computations over a REQ socket. Concurrent calls are
// multiplexed through socket contexts. Progress is not delivered over this
// transport.
type MangosClient struct {
	sock          mangos.Socket
	addr          string
	logger        logging.Logger
	obs           observer
	cancelTimeout time.Duration
}

// DialMangos connects a client to a MangosServer at addr
func DialMangos(addr string, opts Options) (*MangosClient, error) {
	sock, err := req.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create REQ socket: %w", err)
	}
	// Computations can run longer than any resend interval; never resend
	if err := sock.SetOption(mangos.OptionRetryTime, time.Duration(0)); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to disable request resend: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return &MangosClient{
		sock:          sock,
		addr:          addr,
		logger:        opts.logger(MangosName),
		obs:           observer{name: MangosName, metrics: opts.Metrics},
		cancelTimeout: DefaultCancelTimeout,
	}, nil
}

// Name implements Client
func (c *MangosClient) Name() string { return MangosName }

type recvResult struct {
	frame []byte
	err   error
}

// Compute implements Client. When ctx ends first, a cancel_metrics request is
// sent for requestID and ctx's error returned.
func (c *MangosClient) Compute(ctx context.Context, requestID string, request engine.Request, _ engine.ProgressFunc) (*engine.Result, error) {
	mctx, err := c.sock.OpenContext()
	if err != nil {
		if errors.Is(err, mangos.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	defer mctx.Close()

	env, err := NewEnvelope(MsgComputeMetrics, requestID, request)
	if err != nil {
		return nil, err
	}
	frame, err := EncodeFrame(env)
	if err != nil {
		return nil, err
	}
	if err := mctx.Send(frame); err != nil {
		c.obs.failed("send")
		return nil, fmt.Errorf("send compute_metrics: %w", err)
	}
	c.obs.sent(env.Type, len(frame))

	replies := make(chan recvResult, 1)
	go func() {
		data, err := mctx.Recv()
		replies <- recvResult{frame: data, err: err}
	}()

	select {
	case r := <-replies:
		if r.err != nil {
			c.obs.failed("recv")
			return nil, fmt.Errorf("receive reply: %w", r.err)
		}
		reply, err := DecodeFrame(r.frame)
		if err != nil {
			c.obs.failed("decode")
			return nil, err
		}
		c.obs.received(reply.Type, len(r.frame))
		return decodeResult(reply, requestID)

	case <-ctx.Done():
		mctx.Close()
		c.sendCancel(requestID)
		return nil, ctx.Err()
	}
}

func (c *MangosClient) sendCancel(requestID string) {
	mctx, err := c.sock.OpenContext()
	if err != nil {
		return
	}
	defer mctx.Close()

	if err := mctx.SetOption(mangos.OptionRecvDeadline, c.cancelTimeout); err != nil {
		c.logger.Warn("failed to set cancel deadline", logging.Error(err))
	}

	env, err := NewEnvelope(MsgCancelMetrics, requestID, nil)
	if err != nil {
		return
	}
	frame, err := EncodeFrame(env)
	if err != nil {
		return
	}
	if err := mctx.Send(frame); err != nil {
		c.obs.failed("send")
		c.logger.Warn("failed to send cancel", logging.RequestID(requestID), logging.Error(err))
		return
	}
	c.obs.sent(env.Type, len(frame))

	if _, err := mctx.Recv(); err != nil {
		c.logger.Warn("cancel not acknowledged", logging.RequestID(requestID), logging.Error(err))
	}
}

// Close closes the socket
func (c *MangosClient) Close() error {
	return c.sock.Close()
}
