package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/heron-analytics/heron/internal/domain"
)

func TestChannelBus(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	t.Run("PublishSubscribe", func(t *testing.T) {
		received := make(chan *domain.Message, 1)

		sub, err := b.Subscribe(ctx, "heron.churn.alert", func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		if sub.Topic() != "heron.churn.alert" {
			t.Errorf("expected topic 'heron.churn.alert', got '%s'", sub.Topic())
		}

		if err := b.Publish(ctx, "heron.churn.alert", []byte(`{"probability":0.91}`)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		select {
		case msg := <-received:
			if string(msg.Payload) != `{"probability":0.91}` {
				t.Errorf("unexpected payload: %s", msg.Payload)
			}
			if msg.Topic != "heron.churn.alert" {
				t.Errorf("unexpected topic: %s", msg.Topic)
			}
			if msg.ID == "" {
				t.Error("expected message ID to be set")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	})

	t.Run("TopicIsolation", func(t *testing.T) {
		received := make(chan *domain.Message, 1)

		sub, err := b.Subscribe(ctx, "heron.incidents.alert", func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		_ = b.Publish(ctx, "heron.churn.alert", []byte("other topic"))

		select {
		case msg := <-received:
			t.Errorf("received message for wrong topic: %s", msg.Topic)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(2)

		for i := 0; i < 2; i++ {
			sub, err := b.Subscribe(ctx, "heron.fanout", func(ctx context.Context, msg *domain.Message) error {
				wg.Done()
				return nil
			})
			if err != nil {
				t.Fatalf("Subscribe failed: %v", err)
			}
			defer sub.Unsubscribe()
		}

		if err := b.Publish(ctx, "heron.fanout", []byte("hello")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("not all subscribers received the message")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		received := make(chan *domain.Message, 1)

		sub, err := b.Subscribe(ctx, "heron.cancel", func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("Unsubscribe failed: %v", err)
		}

		// The subscription must be detached from the bus, not just
		// cancelled, so Publish stops enqueuing to its channel.
		b.mu.RLock()
		remaining := len(b.subscriptions["heron.cancel"])
		b.mu.RUnlock()
		if remaining != 0 {
			t.Errorf("expected 0 subscriptions after unsubscribe, got %d", remaining)
		}

		for i := 0; i < 10; i++ {
			_ = b.Publish(ctx, "heron.cancel", []byte("late"))
		}

		select {
		case <-received:
			t.Error("received message after unsubscribe")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	if err := b.Ping(ctx); err != nil {
		t.Fatalf("Ping failed on open bus: %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := b.Publish(ctx, "heron.churn.alert", []byte("x")); err == nil {
		t.Error("expected error publishing on closed bus")
	}
	if _, err := b.Subscribe(ctx, "heron.churn.alert", nil); err == nil {
		t.Error("expected error subscribing on closed bus")
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping error on closed bus")
	}

	// Close is idempotent
	if err := b.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestNewBus(t *testing.T) {
	b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 16})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*ChannelBus); !ok {
		t.Errorf("expected *ChannelBus for channel type, got %T", b)
	}

	if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
		t.Error("expected error for unsupported bus type")
	}
}
