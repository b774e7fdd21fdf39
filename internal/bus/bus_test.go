package bus

import (
	"context"
	"fmt"
	"testing"

	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

func TestSubscribeDeliversMatchingMessagesInOrder(t *testing.T) {
	ctx := context.Background()
	b := New(ledger.NewMemStore(), nil)

	var got []string
	unsub := b.Subscribe(ledger.Filter{ClusterID: "c1", Topic: "FOO"}, func(m message.Message) {
		got = append(got, fmt.Sprintf("%s:%d", m.Topic, m.ID))
	})
	defer unsub()

	for i := 0; i < 3; i++ {
		if _, err := b.Publish(ctx, message.Message{ClusterID: "c1", Topic: "FOO", Sender: "system"}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if _, err := b.Publish(ctx, message.Message{ClusterID: "c1", Topic: "BAR", Sender: "system"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{"FOO:1", "FOO:2", "FOO:3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	b := New(ledger.NewMemStore(), nil)

	n := 0
	unsub := b.Subscribe(ledger.Filter{ClusterID: "c1"}, func(message.Message) { n++ })
	if _, err := b.Publish(ctx, message.Message{ClusterID: "c1", Topic: "X", Sender: "system"}); err != nil {
		t.Fatal(err)
	}
	unsub()
	if _, err := b.Publish(ctx, message.Message{ClusterID: "c1", Topic: "X", Sender: "system"}); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deliveries after unsubscribe = %d, want 1", n)
	}
}

func TestPanickingSubscriberDoesNotPoisonBus(t *testing.T) {
	ctx := context.Background()
	b := New(ledger.NewMemStore(), nil)

	b.Subscribe(ledger.Filter{ClusterID: "c1"}, func(message.Message) { panic("boom") })

	healthy := 0
	b.Subscribe(ledger.Filter{ClusterID: "c1"}, func(message.Message) { healthy++ })

	if _, err := b.Publish(ctx, message.Message{ClusterID: "c1", Topic: "X", Sender: "system"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if healthy != 1 {
		t.Errorf("healthy subscriber deliveries = %d, want 1 (panic in sibling must not prevent delivery)", healthy)
	}
}
