// Package services orchestrates transaction mutations across the store, the
// change-event bus, the live subscription hub, and the stats cache.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finscope/internal/amqp"
	"finscope/internal/cache"
	"finscope/internal/core"
	"finscope/internal/store"
	"finscope/internal/watch"
)

// ChangePublisher publishes transaction change events to interested
// consumers. A nil publisher disables publishing.
type ChangePublisher interface {
	PublishTransactionChange(ctx context.Context, id, ownerID, op string) error
}

const (
	statsCacheSize = 512
	statsCacheTTL  = 5 * time.Minute
)

// TransactionService orchestrates transaction operations. Mutations go to the
// store first, then publish a change event (best-effort), bump the owner's
// stats cache generation, and push a fresh snapshot to live subscribers.
type TransactionService struct {
	store     store.TransactionStore
	publisher ChangePublisher
	hub       *watch.Hub
	logger    *slog.Logger

	totalsCache *cache.LRUCache[core.Totals]
	seriesCache *cache.LRUCache[core.MonthlySeries]
	cacheMgr    *cache.Manager

	genMu       sync.Mutex
	generations map[string]uint64
	closeOnce   sync.Once
}

func NewTransactionService(txns store.TransactionStore, publisher ChangePublisher, hub *watch.Hub, logger *slog.Logger) *TransactionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TransactionService{
		store:       txns,
		publisher:   publisher,
		hub:         hub,
		logger:      logger,
		totalsCache: cache.NewLRUCache[core.Totals](statsCacheSize, statsCacheTTL),
		seriesCache: cache.NewLRUCache[core.MonthlySeries](statsCacheSize, statsCacheTTL),
		cacheMgr:    cache.NewManager(),
		generations: make(map[string]uint64),
	}

	// Generation bumps orphan stale entries; the manager sweeps them out.
	s.cacheMgr.Register(s.totalsCache)
	s.cacheMgr.Register(s.seriesCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	return s
}

// Close stops the cache cleanup routine. Idempotent.
func (s *TransactionService) Close() {
	s.closeOnce.Do(func() {
		s.cacheMgr.Stop()
	})
}

// Create saves a transaction and fans the change out.
func (s *TransactionService) Create(ctx context.Context, ownerID string, fields core.TransactionFields) (core.TransactionRecord, error) {
	record, err := s.store.Create(ctx, ownerID, fields)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	s.afterMutation(ctx, record.ID, ownerID, amqp.OpCreate)
	return record, nil
}

// Get reads a transaction scoped to its owner. A record belonging to someone
// else is reported as absent, never as forbidden.
func (s *TransactionService) Get(ctx context.Context, ownerID, id string) (core.TransactionRecord, error) {
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return core.TransactionRecord{}, err
	}
	if record.OwnerID != ownerID {
		return core.TransactionRecord{}, core.ErrNotFound
	}
	return record, nil
}

// List returns the owner's transactions newest first.
func (s *TransactionService) List(ctx context.Context, ownerID string) ([]core.TransactionRecord, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Update replaces the editable fields of an owned transaction.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, fields core.TransactionFields) (core.TransactionRecord, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return core.TransactionRecord{}, err
	}

	if err := s.store.Update(ctx, id, fields); err != nil {
		return core.TransactionRecord{}, err
	}
	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		return core.TransactionRecord{}, err
	}

	s.afterMutation(ctx, id, ownerID, amqp.OpUpdate)
	return record, nil
}

// Delete removes an owned transaction. Deleting twice reports absence.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.afterMutation(ctx, id, ownerID, amqp.OpDelete)
	return nil
}

// Totals returns the owner's all-time aggregate figures, cached until the
// next mutation or TTL expiry.
func (s *TransactionService) Totals(ctx context.Context, ownerID string) (core.Totals, error) {
	key := s.cacheKey(ownerID, "totals")
	if totals, ok := s.totalsCache.Get(key); ok {
		return totals, nil
	}

	records, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return core.Totals{}, err
	}

	totals := core.ComputeTotals(records)
	s.totalsCache.Set(key, totals)
	return totals, nil
}

// MonthlySeries returns the owner's chart-ready monthly buckets for the
// window ending at ref's month.
func (s *TransactionService) MonthlySeries(ctx context.Context, ownerID string, monthsBack int, ref time.Time) (core.MonthlySeries, error) {
	if monthsBack <= 0 {
		monthsBack = core.DefaultMonthsBack
	}
	key := s.cacheKey(ownerID, fmt.Sprintf("series:%d:%d-%d", monthsBack, ref.Year(), int(ref.Month())))
	if series, ok := s.seriesCache.Get(key); ok {
		return series, nil
	}

	records, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return core.MonthlySeries{}, err
	}

	series := core.BuildMonthlySeries(records, monthsBack, ref)
	s.seriesCache.Set(key, series)
	return series, nil
}

// ApplyRemoteChange folds a change event from another process into the local
// caches and live subscriptions.
func (s *TransactionService) ApplyRemoteChange(ctx context.Context, msg *amqp.TransactionChangeMessage) error {
	if msg.OwnerID == "" {
		return errors.New("change event without owner")
	}
	s.invalidateStats(msg.OwnerID)
	s.hub.Notify(ctx, watch.TransactionsTopic(msg.OwnerID))
	return nil
}

func (s *TransactionService) afterMutation(ctx context.Context, id, ownerID, op string) {
	s.invalidateStats(ownerID)

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionChange(ctx, id, ownerID, op); err != nil {
			// Local state is committed; the event bus catches up later.
			s.logger.ErrorContext(ctx, "Failed to publish change message",
				"txn_id", id, "op", op, "error", err)
		}
	} else {
		s.logger.WarnContext(ctx, "Change publisher not available, skipping message", "op", op)
	}

	if s.hub != nil {
		s.hub.Notify(ctx, watch.TransactionsTopic(ownerID))
	}
}

// invalidateStats bumps the owner's cache generation. Stale entries stop
// being addressable and age out of the LRU on their own.
func (s *TransactionService) invalidateStats(ownerID string) {
	s.genMu.Lock()
	s.generations[ownerID]++
	s.genMu.Unlock()
}

func (s *TransactionService) cacheKey(ownerID, suffix string) string {
	s.genMu.Lock()
	gen := s.generations[ownerID]
	s.genMu.Unlock()
	return fmt.Sprintf("%s:%d:%s", ownerID, gen, suffix)
}

// NewSnapshotLoader builds the hub's snapshot loader over the stores. A
// missing profile materializes as an absent document, not an error.
func NewSnapshotLoader(txns store.TransactionStore, users store.UserStore) watch.Loader {
	return func(ctx context.Context, topic string) (watch.Snapshot, error) {
		owner := watch.OwnerFromTopic(topic)
		switch {
		case watch.IsTransactionsTopic(topic):
			records, err := txns.ListByOwner(ctx, owner)
			if err != nil {
				return watch.Snapshot{}, err
			}
			return watch.Snapshot{Records: records}, nil
		case watch.IsProfileTopic(topic):
			profile, err := users.GetUserByID(ctx, owner)
			if errors.Is(err, core.ErrNotFound) {
				return watch.Snapshot{}, nil
			}
			if err != nil {
				return watch.Snapshot{}, err
			}
			return watch.Snapshot{Profile: &profile}, nil
		default:
			return watch.Snapshot{}, fmt.Errorf("unknown topic %q", topic)
		}
	}
}
