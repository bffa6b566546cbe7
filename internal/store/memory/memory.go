package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"finscope/internal/core"

	"github.com/google/uuid"
)

// Store is an in-memory document store used by the memory backend and by
// tests. It honors the same contracts as the sqlite repository.
type Store struct {
	mu    sync.Mutex
	seq   int64
	users map[string]userDoc
	txns  map[string]txnDoc
}

type userDoc struct {
	profile core.UserProfile
	hash    string
}

type txnDoc struct {
	record core.TransactionRecord
	seq    int64
}

func New() *Store {
	return &Store{
		users: make(map[string]userDoc),
		txns:  make(map[string]txnDoc),
	}
}

func (s *Store) Create(_ context.Context, ownerID string, fields core.TransactionFields) (core.TransactionRecord, error) {
	if ownerID == "" {
		return core.TransactionRecord{}, core.ErrUnauthenticated
	}
	if err := fields.Validate(); err != nil {
		return core.TransactionRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	record := core.TransactionRecord{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Kind:        fields.Kind,
		Title:       strings.TrimSpace(fields.Title),
		Amount:      fields.Amount,
		Description: strings.TrimSpace(fields.Description),
		CreatedAt:   time.Now().UTC(),
	}
	s.txns[record.ID] = txnDoc{record: record, seq: s.seq}
	return record, nil
}

func (s *Store) GetByID(_ context.Context, id string) (core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.txns[id]
	if !ok {
		return core.TransactionRecord{}, core.ErrNotFound
	}
	return doc.record, nil
}

func (s *Store) Update(_ context.Context, id string, fields core.TransactionFields) error {
	if err := fields.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.txns[id]
	if !ok {
		return core.ErrNotFound
	}
	// id, owner and creation timestamp are immutable
	doc.record.Kind = fields.Kind
	doc.record.Title = strings.TrimSpace(fields.Title)
	doc.record.Amount = fields.Amount
	doc.record.Description = strings.TrimSpace(fields.Description)
	s.txns[id] = doc
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.txns, id)
	return nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID string) ([]core.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]txnDoc, 0)
	for _, doc := range s.txns {
		if doc.record.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	// Newest first; the insertion counter breaks same-instant ties.
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].record.CreatedAt.Equal(docs[j].record.CreatedAt) {
			return docs[i].seq > docs[j].seq
		}
		return docs[i].record.CreatedAt.After(docs[j].record.CreatedAt)
	})

	records := make([]core.TransactionRecord, len(docs))
	for i, doc := range docs {
		records[i] = doc.record
	}
	return records, nil
}

func (s *Store) CreateUser(_ context.Context, profile core.UserProfile, passwordHash string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	for _, u := range s.users {
		if strings.EqualFold(u.profile.Email, email) {
			return core.UserProfile{}, core.ErrEmailTaken
		}
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.Email = email
	profile.CreatedAt = time.Now().UTC()
	s.users[profile.ID] = userDoc{profile: profile, hash: passwordHash}
	return profile, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.UserProfile, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.profile.Email, strings.TrimSpace(email)) {
			return u.profile, u.hash, nil
		}
	}
	return core.UserProfile{}, "", core.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.UserProfile{}, core.ErrNotFound
	}
	return u.profile, nil
}

func (s *Store) UpdateProfile(_ context.Context, id, name string, age int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	u.profile.Name = name
	u.profile.Age = age
	s.users[id] = u
	return nil
}
