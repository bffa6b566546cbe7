// Package memory is an in-process statement writer used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finscope/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items []core.TransactionRecord
	fail  error
}

func New() *Store {
	return &Store{}
}

// Append stores the record and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, record core.TransactionRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.items = append(s.items, record)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Rows returns a copy of the appended records in order.
func (s *Store) Rows() []core.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TransactionRecord(nil), s.items...)
}

// FailWith makes subsequent appends return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}
