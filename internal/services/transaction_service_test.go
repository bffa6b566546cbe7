package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finscope/internal/amqp"
	"finscope/internal/core"
	"finscope/internal/store/memory"
	"finscope/internal/watch"
)

type recordingPublisher struct {
	mu   sync.Mutex
	ops  []string
	fail error
}

func (p *recordingPublisher) PublishTransactionChange(_ context.Context, id, ownerID, op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.ops = append(p.ops, op)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ops...)
}

func newTestService(t *testing.T, publisher ChangePublisher) (*TransactionService, *memory.Store, *watch.Hub) {
	t.Helper()
	st := memory.New()
	hub := watch.NewHub(NewSnapshotLoader(st, st), nil)
	svc := NewTransactionService(st, publisher, hub, nil)
	t.Cleanup(svc.Close)
	return svc, st, hub
}

func income(title string, amount float64) core.TransactionFields {
	return core.TransactionFields{Kind: core.KindIncome, Title: title, Amount: amount}
}

func TestCreatePublishesAndScopes(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newTestService(t, pub)
	ctx := context.Background()

	record, err := svc.Create(ctx, "u1", income("Salary", 100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.ID == "" || record.OwnerID != "u1" {
		t.Fatalf("bad record: %+v", record)
	}
	if got := pub.published(); len(got) != 1 || got[0] != amqp.OpCreate {
		t.Fatalf("expected one create event, got %v", got)
	}

	if _, err := svc.Create(ctx, "", income("Salary", 100)); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	svc, st, _ := newTestService(t, pub)
	ctx := context.Background()

	record, err := svc.Create(ctx, "u1", income("Salary", 100))
	if err != nil {
		t.Fatalf("create should survive a publish failure: %v", err)
	}
	if _, err := st.GetByID(ctx, record.ID); err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
}

func TestNilPublisherIsAllowed(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	if _, err := svc.Create(context.Background(), "u1", income("Salary", 100)); err != nil {
		t.Fatalf("create without publisher: %v", err)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc, _, _ := newTestService(t, &recordingPublisher{})
	ctx := context.Background()

	record, err := svc.Create(ctx, "u1", income("Salary", 100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, "u1", record.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.Get(ctx, "u2", record.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign read must look absent, got %v", err)
	}
}

func TestUpdateAndDeleteScopedToOwner(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _, _ := newTestService(t, pub)
	ctx := context.Background()

	record, err := svc.Create(ctx, "u1", income("Salary", 100))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(ctx, "u2", record.ID, income("Hijack", 1)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign update must look absent, got %v", err)
	}

	updated, err := svc.Update(ctx, "u1", record.ID, core.TransactionFields{
		Kind: core.KindExpense, Title: "Rent", Amount: 40,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Kind != core.KindExpense || updated.Title != "Rent" || updated.Amount != 40 {
		t.Fatalf("fields not replaced: %+v", updated)
	}
	if updated.ID != record.ID || updated.OwnerID != record.OwnerID || !updated.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("immutable fields changed: %+v", updated)
	}

	if err := svc.Delete(ctx, "u2", record.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign delete must look absent, got %v", err)
	}
	if err := svc.Delete(ctx, "u1", record.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, "u1", record.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete must report absence, got %v", err)
	}

	want := []string{amqp.OpCreate, amqp.OpUpdate, amqp.OpDelete}
	got := pub.published()
	if len(got) != len(want) {
		t.Fatalf("published ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("published ops = %v, want %v", got, want)
		}
	}
}

func TestMutationNotifiesLiveSubscribers(t *testing.T) {
	svc, _, hub := newTestService(t, nil)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, watch.TransactionsTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	<-sub.Snapshots() // initial empty snapshot

	if _, err := svc.Create(ctx, "u1", income("Salary", 100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	select {
	case snap := <-sub.Snapshots():
		if len(snap.Records) != 1 {
			t.Fatalf("expected 1 record in pushed snapshot, got %d", len(snap.Records))
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot pushed after mutation")
	}
}

func TestTotalsCachedUntilMutation(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", income("Salary", 100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	totals, err := svc.Totals(ctx, "u1")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Income != 100 || totals.IncomeCount != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	// Cached read returns the same figures.
	again, err := svc.Totals(ctx, "u1")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if again != totals {
		t.Fatalf("cached totals changed: %+v vs %+v", again, totals)
	}

	// A mutation must invalidate the cache.
	if _, err := svc.Create(ctx, "u1", core.TransactionFields{Kind: core.KindExpense, Title: "Rent", Amount: 40}); err != nil {
		t.Fatalf("create: %v", err)
	}
	after, err := svc.Totals(ctx, "u1")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if after.Expense != 40 || after.Net != 60 {
		t.Fatalf("stale totals after mutation: %+v", after)
	}
}

func TestMonthlySeriesDefaultWindow(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", income("Salary", 100)); err != nil {
		t.Fatalf("create: %v", err)
	}

	series, err := svc.MonthlySeries(ctx, "u1", 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series.Labels) != core.DefaultMonthsBack {
		t.Fatalf("expected default %d-month window, got %d", core.DefaultMonthsBack, len(series.Labels))
	}
	if series.Income[len(series.Income)-1] != 100 {
		t.Fatalf("current month bucket missing the record: %+v", series)
	}
}

func TestApplyRemoteChangeNotifies(t *testing.T) {
	svc, st, hub := newTestService(t, nil)
	ctx := context.Background()

	if _, err := st.Create(ctx, "u1", income("Salary", 100)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	sub, err := hub.Subscribe(ctx, watch.TransactionsTopic("u1"))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	<-sub.Snapshots()

	// Another process wrote directly to the shared store.
	record, err := st.Create(ctx, "u1", income("Bonus", 50))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	msg := amqp.NewTransactionChangeMessage(record.ID, "u1", amqp.OpCreate)
	if err := svc.ApplyRemoteChange(ctx, msg); err != nil {
		t.Fatalf("apply remote change: %v", err)
	}

	select {
	case snap := <-sub.Snapshots():
		if len(snap.Records) != 2 {
			t.Fatalf("expected refreshed snapshot with 2 records, got %d", len(snap.Records))
		}
	case <-time.After(time.Second):
		t.Fatalf("remote change did not reach local subscribers")
	}

	if err := svc.ApplyRemoteChange(ctx, &amqp.TransactionChangeMessage{ID: "x"}); err == nil {
		t.Fatalf("ownerless change event must be rejected")
	}
}

func TestSnapshotLoaderProfileTopic(t *testing.T) {
	st := memory.New()
	loader := NewSnapshotLoader(st, st)
	ctx := context.Background()

	// Absent profile is an empty snapshot, not an error.
	snap, err := loader(ctx, watch.ProfileTopic("ghost"))
	if err != nil {
		t.Fatalf("absent profile: %v", err)
	}
	if snap.Profile != nil {
		t.Fatalf("expected nil profile, got %+v", snap.Profile)
	}

	profile, err := st.CreateUser(ctx, core.UserProfile{Name: "Ada", Email: "ada@example.com", Age: 36}, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	snap, err = loader(ctx, watch.ProfileTopic(profile.ID))
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if snap.Profile == nil || snap.Profile.Name != "Ada" {
		t.Fatalf("unexpected profile snapshot: %+v", snap.Profile)
	}

	if _, err := loader(ctx, "mystery:u1"); err == nil {
		t.Fatalf("unknown topic must error")
	}
}
