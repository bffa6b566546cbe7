package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finscope/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "finscope.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedTransaction(t *testing.T, repo *SQLiteRepository, owner, title string, amount float64) core.TransactionRecord {
	t.Helper()
	record, err := repo.Create(context.Background(), owner, core.TransactionFields{
		Kind: core.KindIncome, Title: title, Amount: amount,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return record
}

func TestTransactionCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	record := seedTransaction(t, repo, "u1", "Salary", 100)
	if record.ID == "" || record.CreatedAt.IsZero() {
		t.Fatalf("store-assigned fields missing: %+v", record)
	}

	got, err := repo.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != record.ID || got.OwnerID != record.OwnerID || got.Kind != record.Kind ||
		got.Title != record.Title || got.Amount != record.Amount || !got.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, record)
	}

	if err := repo.Update(ctx, record.ID, core.TransactionFields{
		Kind: core.KindExpense, Title: "  Rent  ", Amount: 40,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := repo.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if updated.Kind != core.KindExpense || updated.Title != "Rent" || updated.Amount != 40 {
		t.Fatalf("fields not replaced: %+v", updated)
	}
	if updated.ID != record.ID || updated.OwnerID != record.OwnerID || !updated.CreatedAt.Equal(record.CreatedAt) {
		t.Fatalf("immutable fields changed: %+v", updated)
	}

	if err := repo.Delete(ctx, record.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, record.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, record.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get after delete error = %v, want ErrNotFound", err)
	}
}

func TestTransactionValidationAndScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, "", core.TransactionFields{Kind: core.KindIncome, Title: "x", Amount: 1}); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("ownerless create error = %v, want ErrUnauthenticated", err)
	}
	if _, err := repo.Create(ctx, "u1", core.TransactionFields{Kind: "loan", Title: "x", Amount: 1}); !errors.Is(err, core.ErrInvalidKind) {
		t.Fatalf("bad kind error = %v, want ErrInvalidKind", err)
	}
	if err := repo.Update(ctx, "whatever", core.TransactionFields{Kind: core.KindIncome, Title: "", Amount: 1}); !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("empty title error = %v, want ErrEmptyTitle", err)
	}

	seedTransaction(t, repo, "u1", "Salary", 100)
	seedTransaction(t, repo, "u2", "Bonus", 50)

	records, err := repo.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Title != "Salary" {
		t.Fatalf("list leaked foreign records: %+v", records)
	}

	empty, err := repo.ListByOwner(ctx, "nobody")
	if err != nil {
		t.Fatalf("list empty owner: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestUserStore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	profile, err := repo.CreateUser(ctx, core.UserProfile{
		Name: "Ada", Email: "Ada@Example.com", Age: 36,
	}, "hash-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if profile.ID == "" || profile.Email != "ada@example.com" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := repo.CreateUser(ctx, core.UserProfile{
		Name: "Other", Email: "ADA@example.com", Age: 20,
	}, "hash-2"); !errors.Is(err, core.ErrEmailTaken) {
		t.Fatalf("duplicate email error = %v, want ErrEmailTaken", err)
	}

	got, hash, err := repo.GetUserByEmail(ctx, "  ADA@example.com ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != profile.ID || hash != "hash-1" {
		t.Fatalf("unexpected lookup: %+v hash=%q", got, hash)
	}

	if err := repo.UpdateProfile(ctx, profile.ID, "Ada L.", 37); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	updated, err := repo.GetUserByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if updated.Name != "Ada L." || updated.Age != 37 || updated.Email != profile.Email {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := repo.GetUserByID(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing user error = %v, want ErrNotFound", err)
	}
}

func TestExportStateLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := seedTransaction(t, repo, "u1", "Salary", 100)
	second := seedTransaction(t, repo, "u1", "Bonus", 50)

	pending, err := repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending rows, got %d", len(pending))
	}

	if err := repo.MarkExported(ctx, first.ID); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	if err := repo.MarkExportError(ctx, second.ID); err != nil {
		t.Fatalf("mark error: %v", err)
	}

	pending, err = repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("exported and errored rows must leave the pool: %+v", pending)
	}

	// Editing a transaction puts it back in the pending pool.
	if err := repo.Update(ctx, first.ID, core.TransactionFields{
		Kind: core.KindIncome, Title: "Salary", Amount: 120,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	pending, err = repo.GetPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("edited row missing from pending pool: %+v", pending)
	}

	if err := repo.MarkExported(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("mark unknown id error = %v, want ErrNotFound", err)
	}
}

func TestGetPendingExportRespectsLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedTransaction(t, repo, "u1", "Salary", float64(100+i))
	}

	pending, err := repo.GetPendingExport(ctx, 2)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("limit not honored: got %d rows", len(pending))
	}
}
