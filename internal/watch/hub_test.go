package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finscope/internal/core"
)

// countingLoader returns a snapshot whose record count equals the number of
// loads performed, so tests can tell emissions apart.
type countingLoader struct {
	mu    sync.Mutex
	loads int
	err   error
}

func (l *countingLoader) load(_ context.Context, topic string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return Snapshot{}, l.err
	}
	l.loads++
	records := make([]core.TransactionRecord, l.loads)
	for i := range records {
		records[i] = core.TransactionRecord{ID: "r", OwnerID: OwnerFromTopic(topic), Kind: core.KindIncome, Amount: 1}
	}
	return Snapshot{Records: records}, nil
}

func recvSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			t.Fatalf("snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)

	sub, err := hub.Subscribe(context.Background(), TransactionsTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	snap := recvSnapshot(t, sub)
	if snap.Topic != "transactions:u1" || len(snap.Records) != 1 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}
}

func TestSubscribeLoadErrorReleases(t *testing.T) {
	loader := &countingLoader{err: errors.New("backend down")}
	hub := NewHub(loader.load, nil)

	if _, err := hub.Subscribe(context.Background(), TransactionsTopic("u1")); err == nil {
		t.Fatalf("expected error from failing loader")
	}
	if n := hub.Subscribers(TransactionsTopic("u1")); n != 0 {
		t.Fatalf("failed subscribe leaked %d subscribers", n)
	}
}

func TestNotifyPushesFullSnapshot(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, TransactionsTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	first := recvSnapshot(t, sub)

	hub.Notify(ctx, TransactionsTopic("u1"))
	second := recvSnapshot(t, sub)
	if second.Seq <= first.Seq {
		t.Fatalf("emission sequence did not advance: %d then %d", first.Seq, second.Seq)
	}
	if len(second.Records) != 2 {
		t.Fatalf("expected re-materialized snapshot, got %d records", len(second.Records))
	}
}

func TestNotifySkipsTopicsWithoutSubscribers(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)

	hub.Notify(context.Background(), TransactionsTopic("nobody"))
	if loader.loads != 0 {
		t.Fatalf("loader ran for a topic with no subscribers")
	}
}

func TestPendingSnapshotCoalesced(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, TransactionsTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	// Do not read the channel: three emissions pile up behind one pending
	// slot and only the newest must survive.
	hub.Notify(ctx, TransactionsTopic("u1"))
	hub.Notify(ctx, TransactionsTopic("u1"))
	hub.Notify(ctx, TransactionsTopic("u1"))

	snap := recvSnapshot(t, sub)
	if len(snap.Records) != 4 {
		t.Fatalf("expected only the latest snapshot, got %d records", len(snap.Records))
	}
	select {
	case extra, ok := <-sub.Snapshots():
		if ok {
			t.Fatalf("stale snapshot not coalesced: %+v", extra)
		}
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, TransactionsTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvSnapshot(t, sub)

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	if n := hub.Subscribers(TransactionsTopic("u1")); n != 0 {
		t.Fatalf("%d subscribers left after unsubscribe", n)
	}

	hub.Notify(ctx, TransactionsTopic("u1"))
	if _, ok := <-sub.Snapshots(); ok {
		t.Fatalf("delivery after unsubscribe")
	}
}

func TestIdentitySwitchEpochs(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	oldSub, err := hub.Subscribe(ctx, TransactionsTopic("userA"))
	if err != nil {
		t.Fatalf("subscribe A: %v", err)
	}
	recvSnapshot(t, oldSub)

	// Sign-out/sign-in: tear down A before establishing B.
	oldSub.Unsubscribe()
	newSub, err := hub.Subscribe(ctx, TransactionsTopic("userB"))
	if err != nil {
		t.Fatalf("subscribe B: %v", err)
	}
	defer newSub.Unsubscribe()

	if newSub.Epoch <= oldSub.Epoch {
		t.Fatalf("replacement subscription must carry a higher epoch: %d then %d", oldSub.Epoch, newSub.Epoch)
	}

	// A late publish against the old identity must not reach anything.
	hub.Notify(ctx, TransactionsTopic("userA"))
	if _, ok := <-oldSub.Snapshots(); ok {
		t.Fatalf("late arrival delivered to cancelled subscription")
	}

	snap := recvSnapshot(t, newSub)
	if OwnerFromTopic(snap.Topic) != "userB" {
		t.Fatalf("snapshot from prior identity applied: %q", snap.Topic)
	}
}

func TestIndependentSubscriptionsAreIsolated(t *testing.T) {
	loader := &countingLoader{}
	hub := NewHub(loader.load, nil)
	ctx := context.Background()

	txnSub, err := hub.Subscribe(ctx, TransactionsTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe txns: %v", err)
	}
	defer txnSub.Unsubscribe()
	profSub, err := hub.Subscribe(ctx, ProfileTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe profile: %v", err)
	}
	defer profSub.Unsubscribe()

	recvSnapshot(t, txnSub)
	recvSnapshot(t, profSub)

	hub.Notify(ctx, ProfileTopic("u1"))
	snap := recvSnapshot(t, profSub)
	if snap.Topic != "profile:u1" {
		t.Fatalf("wrong topic delivered: %q", snap.Topic)
	}
	select {
	case snap := <-txnSub.Snapshots():
		t.Fatalf("profile change leaked into transaction subscription: %+v", snap)
	default:
	}
}
