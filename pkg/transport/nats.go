package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dd0wney/cluso-graphmetrics/pkg/engine"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// NATSName is the transport label used in logs and metrics
const NATSName = "nats"

// DefaultSubjectPrefix prefixes the compute and cancel subjects
const DefaultSubjectPrefix = "graphmetrics"

// Subjects derived from a prefix
func computeSubject(prefix string) string { return prefix + ".compute" }
func cancelSubject(prefix string) string  { return prefix + ".cancel" }
func queueGroup(prefix string) string     { return prefix + "-workers" }

func connectNATS(url string, opts []nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSServer serves compute_metrics requests from a queue group, so several
// workers can share one subject. Progress checkpoints are published to the
// request's reply inbox ahead of the final reply.
type NATSServer struct {
	conn     *nats.Conn
	prefix   string
	handler  Handler
	logger   logging.Logger
	obs      observer
	inflight *inflight

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	subs   []*nats.Subscription
	once   sync.Once
}

// NewNATSServer connects to the NATS server at url
func NewNATSServer(url, prefix string, handler Handler, opts Options, natsOpts ...nats.Option) (*NATSServer, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	nc, err := connectNATS(url, natsOpts)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NATSServer{
		conn:     nc,
		prefix:   prefix,
		handler:  handler,
		logger:   opts.logger(NATSName),
		obs:      observer{name: NATSName, metrics: opts.Metrics},
		inflight: newInflight(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start subscribes to the compute and cancel subjects
func (s *NATSServer) Start() error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}

	computeSub, err := s.conn.QueueSubscribe(computeSubject(s.prefix), queueGroup(s.prefix), s.onCompute)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", computeSubject(s.prefix), err)
	}
	cancelSub, err := s.conn.Subscribe(cancelSubject(s.prefix), s.onCancel)
	if err != nil {
		_ = computeSub.Unsubscribe()
		return fmt.Errorf("subscribing to %s: %w", cancelSubject(s.prefix), err)
	}
	s.subs = []*nats.Subscription{computeSub, cancelSub}

	// Make sure the server knows about both subscriptions before requests arrive
	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("flushing subscriptions: %w", err)
	}

	s.logger.Info("nats worker subscribed", logging.String("subject", computeSubject(s.prefix)))
	return nil
}

func (s *NATSServer) onCompute(msg *nats.Msg) {
	env, err := DecodeFrame(msg.Data)
	if err != nil {
		s.obs.failed("decode")
		s.logger.Warn("dropping malformed request", logging.Error(err))
		return
	}
	s.obs.received(env.Type, len(msg.Data))
	if msg.Reply == "" {
		s.logger.Warn("dropping request without reply subject", logging.RequestID(env.ID))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, done := s.inflight.start(s.ctx, env.ID)
		defer done()

		progress := func(p engine.Progress) {
			if pe, err := NewEnvelope(MsgMetricsProgress, env.ID, p); err == nil {
				s.publish(msg.Reply, pe)
			}
		}
		s.publish(msg.Reply, serve(ctx, s.handler, env, progress, s.logger))
	}()
}

func (s *NATSServer) onCancel(msg *nats.Msg) {
	env, err := DecodeFrame(msg.Data)
	if err != nil {
		s.obs.failed("decode")
		return
	}
	s.obs.received(env.Type, len(msg.Data))
	if s.inflight.cancel(env.ID) {
		s.logger.Info("cancel requested", logging.RequestID(env.ID))
	}
}

func (s *NATSServer) publish(subject string, env *Envelope) {
	frame, err := EncodeFrame(env)
	if err != nil {
		s.obs.failed("encode")
		s.logger.Error("failed to encode message", logging.RequestID(env.ID), logging.Error(err))
		return
	}
	if err := s.conn.Publish(subject, frame); err != nil {
		s.obs.failed("send")
		s.logger.Warn("publish failed", logging.RequestID(env.ID), logging.Error(err))
		return
	}
	s.obs.sent(env.Type, len(frame))
}

// Close unsubscribes, cancels running computations and waits for their
// replies to be published
func (s *NATSServer) Close() error {
	s.once.Do(func() {
		for _, sub := range s.subs {
			_ = sub.Unsubscribe()
		}
		s.cancel()
		s.wg.Wait()
		if err := s.conn.Flush(); err != nil {
			s.logger.Debug("flush on close failed", logging.Error(err))
		}
		s.conn.Close()
	})
	return nil
}

// NATSClient sends computations as NATS requests and streams progress from
// the reply inbox
type NATSClient struct {
	conn   *nats.Conn
	prefix string
	logger logging.Logger
	obs    observer
}

// DialNATS connects a client to the NATS server at url
func DialNATS(url, prefix string, opts Options, natsOpts ...nats.Option) (*NATSClient, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	nc, err := connectNATS(url, natsOpts)
	if err != nil {
		return nil, err
	}
	return &NATSClient{
		conn:   nc,
		prefix: prefix,
		logger: opts.logger(NATSName),
		obs:    observer{name: NATSName, metrics: opts.Metrics},
	}, nil
}

// Name implements Client
func (c *NATSClient) Name() string { return NATSName }

// Compute implements Client. When ctx ends first, cancel_metrics is published
// for requestID and ctx's error returned.
func (c *NATSClient) Compute(ctx context.Context, requestID string, request engine.Request, progress engine.ProgressFunc) (*engine.Result, error) {
	if c.conn.IsClosed() {
		return nil, ErrClosed
	}

	inbox := nats.NewInbox()
	sub, err := c.conn.SubscribeSync(inbox)
	if err != nil {
		return nil, fmt.Errorf("subscribing to reply inbox: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	env, err := NewEnvelope(MsgComputeMetrics, requestID, request)
	if err != nil {
		return nil, err
	}
	frame, err := EncodeFrame(env)
	if err != nil {
		return nil, err
	}
	if err := c.conn.PublishRequest(computeSubject(c.prefix), inbox, frame); err != nil {
		c.obs.failed("send")
		return nil, fmt.Errorf("publishing compute_metrics: %w", err)
	}
	c.obs.sent(env.Type, len(frame))

	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				c.sendCancel(requestID)
				return nil, ctxErr
			}
			c.obs.failed("recv")
			return nil, fmt.Errorf("waiting for reply: %w", err)
		}

		// The server answers a request nobody is subscribed to with an empty
		// status message
		if len(msg.Data) == 0 && msg.Header.Get("Status") == "503" {
			return nil, nats.ErrNoResponders
		}

		reply, err := DecodeFrame(msg.Data)
		if err != nil {
			c.obs.failed("decode")
			return nil, err
		}
		c.obs.received(reply.Type, len(msg.Data))

		if reply.Type == MsgMetricsProgress {
			if progress == nil {
				continue
			}
			var p engine.Progress
			if err := reply.Decode(&p); err != nil {
				c.logger.Debug("ignoring malformed progress", logging.RequestID(requestID), logging.Error(err))
				continue
			}
			progress(p)
			continue
		}
		return decodeResult(reply, requestID)
	}
}

func (c *NATSClient) sendCancel(requestID string) {
	env, err := NewEnvelope(MsgCancelMetrics, requestID, nil)
	if err != nil {
		return
	}
	frame, err := EncodeFrame(env)
	if err != nil {
		return
	}
	if err := c.conn.Publish(cancelSubject(c.prefix), frame); err != nil {
		c.obs.failed("send")
		c.logger.Warn("failed to publish cancel", logging.RequestID(requestID), logging.Error(err))
		return
	}
	if err := c.conn.Flush(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		c.logger.Debug("flush after cancel failed", logging.Error(err))
	}
	c.obs.sent(env.Type, len(frame))
}

// Close closes the connection
func (c *NATSClient) Close() error {
	c.conn.Close()
	return nil
}
