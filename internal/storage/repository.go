package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finscope/internal/core"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteRepository implements store.TransactionStore and store.UserStore on
// a local sqlite file. Timestamps are persisted as epoch milliseconds so the
// rest of the system only ever sees normalized time.Time values.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create implements store.TransactionStore
func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, fields core.TransactionFields) (core.TransactionRecord, error) {
	if ownerID == "" {
		return core.TransactionRecord{}, core.ErrUnauthenticated
	}
	if err := fields.Validate(); err != nil {
		return core.TransactionRecord{}, err
	}

	record := core.TransactionRecord{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Kind:        fields.Kind,
		Title:       strings.TrimSpace(fields.Title),
		Amount:      fields.Amount,
		Description: strings.TrimSpace(fields.Description),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, kind, title, amount, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.OwnerID, string(record.Kind), record.Title,
		record.Amount, record.Description, core.EpochMillis(record.CreatedAt))
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"txn_id", record.ID,
		"user_id", record.OwnerID,
		"kind", string(record.Kind),
		"amount", record.Amount)

	return record, nil
}

// GetByID implements store.TransactionStore
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (core.TransactionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, kind, title, amount, description, created_at
		 FROM transactions WHERE id = ?`, id)
	record, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TransactionRecord{}, core.ErrNotFound
	}
	if err != nil {
		return core.TransactionRecord{}, fmt.Errorf("get transaction: %w", err)
	}
	return record, nil
}

// Update implements store.TransactionStore. Only the mutable fields change;
// id, owner and creation timestamp stay as written.
func (r *SQLiteRepository) Update(ctx context.Context, id string, fields core.TransactionFields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	// An edited transaction needs a fresh statement row, so it goes back to
	// the pending export pool.
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET kind = ?, title = ?, amount = ?, description = ?, export_state = 'pending' WHERE id = ?`,
		string(fields.Kind), strings.TrimSpace(fields.Title), fields.Amount,
		strings.TrimSpace(fields.Description), id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res)
}

// Delete implements store.TransactionStore. Destructive: a second delete of
// the same id reports core.ErrNotFound, never silent success.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "txn_id", id)
	return nil
}

// ListByOwner implements store.TransactionStore
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]core.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, title, amount, description, created_at
		 FROM transactions WHERE user_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	records := make([]core.TransactionRecord, 0)
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

// CreateUser implements store.UserStore
func (r *SQLiteRepository) CreateUser(ctx context.Context, profile core.UserProfile, passwordHash string) (core.UserProfile, error) {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	profile.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, age, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		profile.ID, profile.Name, profile.Email, profile.Age,
		passwordHash, core.EpochMillis(profile.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.UserProfile{}, core.ErrEmailTaken
		}
		return core.UserProfile{}, fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", profile.ID)
	return profile, nil
}

// GetUserByEmail implements store.UserStore
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.UserProfile, string, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, age, password_hash, created_at
		 FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))

	var (
		profile core.UserProfile
		hash    string
		created int64
	)
	err := row.Scan(&profile.ID, &profile.Name, &profile.Email, &profile.Age, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, "", core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, "", fmt.Errorf("get user by email: %w", err)
	}
	profile.CreatedAt = core.FromEpochMillis(created)
	return profile, hash, nil
}

// GetUserByID implements store.UserStore
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, age, created_at FROM users WHERE id = ?`, id)

	var (
		profile core.UserProfile
		created int64
	)
	err := row.Scan(&profile.ID, &profile.Name, &profile.Email, &profile.Age, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get user by id: %w", err)
	}
	profile.CreatedAt = core.FromEpochMillis(created)
	return profile, nil
}

// UpdateProfile implements store.UserStore. Email is the login credential and
// is not editable here.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, id, name string, age int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, age = ? WHERE id = ?`, name, age, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.TransactionRecord, error) {
	var (
		record  core.TransactionRecord
		kind    string
		created int64
	)
	if err := row.Scan(&record.ID, &record.OwnerID, &kind, &record.Title,
		&record.Amount, &record.Description, &created); err != nil {
		return core.TransactionRecord{}, err
	}
	record.Kind = core.Kind(kind)
	record.CreatedAt = core.FromEpochMillis(created)
	return record, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
