// Package bus implements the publish/subscribe front-end over the
// ledger: every agent receives messages only through a Bus
// subscription, never by polling the ledger directly in the hot path.
package bus

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

// Callback is invoked once per delivered message. The bus guarantees
// that no two invocations of the same subscriber's Callback run
// concurrently, but does not serialize across subscribers.
type Callback func(message.Message)

// Unsubscribe detaches a subscription from the bus. Safe to call more
// than once.
type Unsubscribe func()

type subscription struct {
	id       int64
	filter   ledger.Filter
	callback Callback
	mu       sync.Mutex // serializes this subscriber's own callback invocations
}

// Bus appends and fans out Messages published through it. It owns no
// storage itself — all durability is delegated to the Store.
type Bus struct {
	store ledger.Store
	log   *slog.Logger

	mu        sync.Mutex
	subs      map[int64]*subscription
	nextSubID int64
}

// New returns a Bus backed by store. A nil logger falls back to
// slog.Default().
func New(store ledger.Store, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{store: store, log: log, subs: make(map[int64]*subscription)}
}

// Publish appends msg to the ledger as given and delivers it to every
// subscriber whose filter matches, in the order subscriptions were
// registered. The bus does not itself resolve sender_model/provider:
// callers that publish on behalf of an agent (internal/agent) are
// responsible for stamping those fields before calling Publish, since
// only the caller knows which model/provider resolved the message. A
// panicking or slow subscriber never blocks or poisons another: each
// callback runs synchronously for its own subscription only, and if a
// subscriber is still handling a prior message, the bus skips it for
// this delivery pass rather than waiting.
func (b *Bus) Publish(ctx context.Context, msg message.Message) (message.Message, error) {
	stored, err := b.store.Append(ctx, msg)
	if err != nil {
		return message.Message{}, err
	}

	b.mu.Lock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter.Matches(stored) {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	for _, s := range targets {
		b.deliver(s, stored)
	}
	return stored, nil
}

func (b *Bus) deliver(s *subscription, m message.Message) {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("bus: subscriber callback panicked", "panic", r, "cluster_id", m.ClusterID, "topic", m.Topic)
		}
	}()
	s.callback(m)
}

// Subscribe registers callback to receive every future Publish whose
// stamped message matches filter. The returned Unsubscribe detaches it.
func (b *Bus) Subscribe(filter ledger.Filter, callback Callback) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id := b.nextSubID
	b.subs[id] = &subscription{id: id, filter: filter, callback: callback}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Store exposes the underlying ledger.Store for components (context
// builder, validator fixtures) that need direct read access without a
// subscription.
func (b *Bus) Store() ledger.Store { return b.store }
