package store

import (
	"context"

	"finscope/internal/core"
)

// Ports for the document-store adapters. Every transaction operation is
// scoped to an owner identity; there is no cross-user visibility.
type (
	// TransactionStore is the boundary the screens and services consume.
	// Create assigns the id and the server-side creation timestamp. Update
	// is last-write-wins over the mutable fields only. Delete of an absent
	// record reports core.ErrNotFound; there is no soft delete.
	TransactionStore interface {
		Create(ctx context.Context, ownerID string, fields core.TransactionFields) (core.TransactionRecord, error)
		GetByID(ctx context.Context, id string) (core.TransactionRecord, error)
		Update(ctx context.Context, id string, fields core.TransactionFields) error
		Delete(ctx context.Context, id string) error
		// ListByOwner returns the owner's full record set, newest first.
		ListByOwner(ctx context.Context, ownerID string) ([]core.TransactionRecord, error)
	}

	// UserStore keeps the identity accounts and the mirrored profile
	// documents. The password hash never leaves this boundary except to
	// the session provider for verification.
	UserStore interface {
		CreateUser(ctx context.Context, profile core.UserProfile, passwordHash string) (core.UserProfile, error)
		GetUserByEmail(ctx context.Context, email string) (core.UserProfile, string, error)
		GetUserByID(ctx context.Context, id string) (core.UserProfile, error)
		UpdateProfile(ctx context.Context, id, name string, age int) error
	}
)
