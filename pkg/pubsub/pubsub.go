// Package pubsub fans computation events out to in-process subscribers.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrShutdown is returned when subscribing to a broker that has shut down
var ErrShutdown = errors.New("pubsub: broker shut down")

// DefaultBuffer is the per-subscription channel capacity
const DefaultBuffer = 100

// Broker provides topic-based publish/subscribe for values of type T.
// Publishing never blocks: a subscriber whose buffer is full misses the message.
type Broker[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription[T]]struct{}
	buffer      int
	shutdown    chan struct{}
	isShutdown  bool
}

// Subscription represents a subscription to a topic
type Subscription[T any] struct {
	topic     string
	channel   chan T
	broker    *Broker[T]
	cancel    context.CancelFunc
	closeOnce sync.Once
	dropped   atomic.Int64
}

// NewBroker creates a broker whose subscriptions buffer up to buffer messages
func NewBroker[T any](buffer int) *Broker[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker[T]{
		subscribers: make(map[string]map[*Subscription[T]]struct{}),
		buffer:      buffer,
		shutdown:    make(chan struct{}),
	}
}

// Subscribe creates a subscription to topic that ends when ctx is done
func (b *Broker[T]) Subscribe(ctx context.Context, topic string) (*Subscription[T], error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		topic:   topic,
		channel: make(chan T, b.buffer),
		broker:  b,
		cancel:  cancel,
	}

	b.mu.Lock()
	if b.isShutdown {
		b.mu.Unlock()
		cancel()
		return nil, ErrShutdown
	}
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[*Subscription[T]]struct{})
	}
	b.subscribers[topic][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-b.shutdown:
		}
	}()

	return sub, nil
}

// Publish sends message to every subscriber of topic and returns how many
// received it
func (b *Broker[T]) Publish(topic string, message T) int {
	// Sends happen under the read lock so no channel can be closed mid-send;
	// they are non-blocking, so the lock is held briefly
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.isShutdown {
		return 0
	}

	delivered := 0
	for sub := range b.subscribers[topic] {
		select {
		case sub.channel <- message:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

// SubscriberCount returns the number of subscribers for a topic
func (b *Broker[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Shutdown closes all subscriptions. Later publishes are ignored.
func (b *Broker[T]) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isShutdown {
		return
	}
	b.isShutdown = true
	close(b.shutdown)

	for topic, subs := range b.subscribers {
		for sub := range subs {
			sub.close()
		}
		delete(b.subscribers, topic)
	}
}

// Channel returns the subscription's message channel. It is closed when the
// subscription ends.
func (s *Subscription[T]) Channel() <-chan T {
	return s.channel
}

// Dropped returns how many messages were skipped because the buffer was full
func (s *Subscription[T]) Dropped() int64 {
	return s.dropped.Load()
}

// Unsubscribe removes the subscription and closes its channel
func (s *Subscription[T]) Unsubscribe() {
	s.cancel()

	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()

	if subs := s.broker.subscribers[s.topic]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.broker.subscribers, s.topic)
		}
	}
	s.close()
}

func (s *Subscription[T]) close() {
	s.closeOnce.Do(func() {
		close(s.channel)
	})
}
