// Package watch implements the live-query mechanism: subscribers to a topic
// receive the full current result set (a snapshot, not a diff) on subscribe
// and again after every change. Delivery within one subscription follows
// emission order; no ordering is guaranteed across distinct subscriptions.
package watch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"finscope/internal/core"
)

// Topic name builders. One topic per data source per owner.
func TransactionsTopic(ownerID string) string { return "transactions:" + ownerID }
func ProfileTopic(userID string) string       { return "profile:" + userID }

func IsTransactionsTopic(topic string) bool { return strings.HasPrefix(topic, "transactions:") }
func IsProfileTopic(topic string) bool      { return strings.HasPrefix(topic, "profile:") }

// OwnerFromTopic returns the owner/user id part of a topic name.
func OwnerFromTopic(topic string) string {
	if i := strings.IndexByte(topic, ':'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// Snapshot is a full point-in-time materialization of a topic's result set.
// Seq increases with every emission on the hub; a consumer holding two
// snapshots for the same topic keeps the one with the higher Seq and never
// merges (last snapshot wins).
type Snapshot struct {
	Topic   string
	Seq     uint64
	Records []core.TransactionRecord
	Profile *core.UserProfile
}

// Loader materializes the current snapshot for a topic, usually by querying
// the backing store.
type Loader func(ctx context.Context, topic string) (Snapshot, error)

// Subscription is a handle to one live query. Callers must call Unsubscribe
// on every exit path; after Unsubscribe the channel is closed and no further
// snapshots are delivered, even if a publish was racing.
type Subscription struct {
	Topic string
	// Epoch identifies this subscription's lifetime. When a screen switches
	// owner identity it tears this subscription down and opens a new one
	// with a higher epoch; stamping applied state with the epoch lets the
	// consumer reject any late arrival from the old lifetime.
	Epoch uint64

	ch      chan Snapshot
	done    chan struct{}
	lastSeq uint64
	once    sync.Once
	hub     *Hub
}

// Snapshots returns the delivery channel. An undelivered pending snapshot is
// replaced when a newer one arrives, so a slow consumer always observes the
// latest state rather than a backlog.
func (s *Subscription) Snapshots() <-chan Snapshot { return s.ch }

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

// Hub fans snapshots out to per-topic subscriber sets.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
	loader Loader
	logger *slog.Logger
	seq    uint64
	epoch  uint64
}

func NewHub(loader Loader, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		loader: loader,
		logger: logger,
	}
}

// Subscribe registers a subscription and delivers the current snapshot for
// the topic. Registration happens before the initial load so a change racing
// with Subscribe is never missed; the per-subscription Seq guard keeps the
// two emissions from arriving out of order.
func (h *Hub) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	h.mu.Lock()
	h.epoch++
	sub := &Subscription{
		Topic: topic,
		Epoch: h.epoch,
		ch:    make(chan Snapshot, 1),
		done:  make(chan struct{}),
		hub:   h,
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	snap, err := h.load(ctx, topic)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	h.mu.Lock()
	sub.offer(snap)
	h.mu.Unlock()
	return sub, nil
}

// Notify re-materializes the topic's snapshot and pushes it to every live
// subscriber. Errors are logged, not propagated: a failed emission leaves
// subscribers on their previous (stale but coherent) snapshot.
func (h *Hub) Notify(ctx context.Context, topic string) {
	h.mu.Lock()
	hasSubs := len(h.topics[topic]) > 0
	h.mu.Unlock()
	if !hasSubs {
		return
	}

	snap, err := h.load(ctx, topic)
	if err != nil {
		h.logger.ErrorContext(ctx, "Snapshot load failed", "topic", topic, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.topics[topic] {
		sub.offer(snap)
	}
}

// Subscribers returns the live subscription count for a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

func (h *Hub) load(ctx context.Context, topic string) (Snapshot, error) {
	snap, err := h.loader(ctx, topic)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Topic = topic
	h.mu.Lock()
	h.seq++
	snap.Seq = h.seq
	h.mu.Unlock()
	return snap, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[sub.Topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.Topic)
		}
	}
	close(sub.done)
	// Sends only happen under the hub lock, so closing here cannot race a
	// delivery in flight.
	close(sub.ch)
}

// offer delivers without blocking: a pending undelivered snapshot is dropped
// in favor of the newer one, and an emission older than one already offered
// is discarded. Caller holds the hub lock.
func (s *Subscription) offer(snap Snapshot) {
	select {
	case <-s.done:
		return
	default:
	}
	if snap.Seq <= s.lastSeq {
		return
	}
	s.lastSeq = snap.Seq
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
