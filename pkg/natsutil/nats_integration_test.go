//go:build integration

package natsutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

func connectNATS(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	return nc
}

func TestNATS_PubSub(t *testing.T) {
	nc := connectNATS(t)

	type msg struct {
		Text string `json:"text"`
	}

	ch := make(chan msg, 1)
	sub, err := Subscribe(nc, "integ.pubsub", func(ctx context.Context, m msg) {
		ch <- m
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "integ.pubsub", msg{Text: "hello integration"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Text != "hello integration" {
			t.Fatalf("got %q", got.Text)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNATS_QueueGroupSharesWork(t *testing.T) {
	nc := connectNATS(t)

	type msg struct {
		N int `json:"n"`
	}

	ch := make(chan msg, 10)
	for i := 0; i < 2; i++ {
		sub, err := SubscribeQueue(nc, "integ.queue", "workers", func(ctx context.Context, m msg) {
			ch <- m
		})
		if err != nil {
			t.Fatalf("SubscribeQueue: %v", err)
		}
		defer sub.Unsubscribe()
	}

	for i := 0; i < 5; i++ {
		if err := Publish(context.Background(), nc, "integ.queue", msg{N: i}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	seen := 0
	deadline := time.After(5 * time.Second)
	for seen < 5 {
		select {
		case <-ch:
			seen++
		case <-deadline:
			t.Fatalf("saw %d of 5 messages", seen)
		}
	}
}
