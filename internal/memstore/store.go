// Package memstore provides an in-process promotion.Store. It backs the
// concurrency test-suite and the server's "memory" store mode for local
// development.
package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/xenking/promo-engine/internal/promotion"
)

// entry pairs a record with its own lock so reservations for distinct
// promotions never contend.
type entry struct {
	mu  sync.Mutex
	rec promotion.Record
}

// Store is an in-memory promotion.Store safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*entry
	byCode map[string]uuid.UUID
}

var _ promotion.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:   make(map[uuid.UUID]*entry),
		byCode: make(map[string]uuid.UUID),
	}
}

// Put inserts or replaces a record. Intended for seeding; the engine itself
// only mutates usage counts through TryIncrementUsage.
func (s *Store) Put(rec promotion.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = &entry{rec: rec}
	s.byCode[rec.Code] = rec.ID
}

func (s *Store) lookupByID(id uuid.UUID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

// FindByCode returns a copy of the record for code, case-sensitively.
func (s *Store) FindByCode(ctx context.Context, code string) (*promotion.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	id, ok := s.byCode[code]
	s.mu.RUnlock()
	if !ok {
		return nil, promotion.ErrCodeNotFound
	}
	return s.FindByID(ctx, id)
}

// FindByID returns a copy of the record for id.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*promotion.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.lookupByID(id)
	if !ok {
		return nil, promotion.ErrCodeNotFound
	}
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()
	return &rec, nil
}

// TryIncrementUsage performs the conditional increment under the record's
// own lock, making it atomic per promotion id.
func (s *Store) TryIncrementUsage(ctx context.Context, id uuid.UUID) (promotion.IncrementResult, error) {
	if err := ctx.Err(); err != nil {
		return promotion.IncrementResult{}, err
	}
	e, ok := s.lookupByID(id)
	if !ok {
		return promotion.IncrementResult{}, promotion.ErrCodeNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.UsageLimit != nil && e.rec.UsageCount >= *e.rec.UsageLimit {
		return promotion.IncrementResult{Applied: false}, nil
	}
	e.rec.UsageCount++
	return promotion.IncrementResult{Applied: true, UsageCount: e.rec.UsageCount}, nil
}

// Save applies management-API field edits, preserving the usage counter.
func (s *Store) Save(ctx context.Context, rec *promotion.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := s.lookupByID(rec.ID)
	if !ok {
		return promotion.ErrCodeNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	count := e.rec.UsageCount
	e.rec = *rec
	e.rec.UsageCount = count
	return nil
}
