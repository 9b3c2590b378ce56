package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestBasicPubSub tests basic publish/subscribe functionality
func TestBasicPubSub(t *testing.T) {
	b := NewBroker[string](0)
	defer b.Shutdown()

	sub, err := b.Subscribe(context.Background(), "progress")
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if n := b.Publish("progress", "power iteration"); n != 1 {
		t.Errorf("Expected delivery to 1 subscriber, got %d", n)
	}

	select {
	case msg := <-sub.Channel():
		if msg != "power iteration" {
			t.Errorf("Expected 'power iteration', got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

// TestTopicIsolation tests that subscribers only see their topic
func TestTopicIsolation(t *testing.T) {
	b := NewBroker[int](4)
	defer b.Shutdown()

	sub, _ := b.Subscribe(context.Background(), "a")
	b.Publish("b", 1)
	b.Publish("a", 2)

	if got := <-sub.Channel(); got != 2 {
		t.Errorf("Expected 2, got %d", got)
	}
}

// TestFullBufferDrops tests that publishing never blocks on a slow subscriber
func TestFullBufferDrops(t *testing.T) {
	b := NewBroker[int](1)
	defer b.Shutdown()

	sub, _ := b.Subscribe(context.Background(), "t")
	b.Publish("t", 1)
	if n := b.Publish("t", 2); n != 0 {
		t.Errorf("Expected no delivery into a full buffer, got %d", n)
	}
	if sub.Dropped() != 1 {
		t.Errorf("Expected 1 dropped message, got %d", sub.Dropped())
	}
}

// TestContextCancelUnsubscribes tests subscription cleanup on context cancellation
func TestContextCancelUnsubscribes(t *testing.T) {
	b := NewBroker[int](0)
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	sub, _ := b.Subscribe(ctx, "t")
	cancel()

	select {
	case _, ok := <-sub.Channel():
		if ok {
			t.Error("Expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Subscription was not closed after cancel")
	}
	if b.SubscriberCount("t") != 0 {
		t.Errorf("Expected 0 subscribers, got %d", b.SubscriberCount("t"))
	}
}

// TestShutdown tests that shutdown closes subscriptions and refuses new ones
func TestShutdown(t *testing.T) {
	b := NewBroker[int](0)
	sub, _ := b.Subscribe(context.Background(), "t")

	b.Shutdown()
	b.Shutdown()

	if _, ok := <-sub.Channel(); ok {
		t.Error("Expected closed channel after shutdown")
	}
	if _, err := b.Subscribe(context.Background(), "t"); !errors.Is(err, ErrShutdown) {
		t.Errorf("Expected ErrShutdown, got %v", err)
	}
	if n := b.Publish("t", 1); n != 0 {
		t.Errorf("Expected no delivery after shutdown, got %d", n)
	}

	// Unsubscribing after shutdown must not panic
	sub.Unsubscribe()
}

// TestConcurrentPublishUnsubscribe tests publish racing with unsubscribe
func TestConcurrentPublishUnsubscribe(t *testing.T) {
	b := NewBroker[int](8)
	defer b.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub, err := b.Subscribe(context.Background(), "t")
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish("t", j)
			}
		}()
		go func() {
			defer wg.Done()
			sub.Unsubscribe()
		}()
	}
	wg.Wait()
}
