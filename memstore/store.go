package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velmie/streambox"
)

var _ streambox.Store = (*Store)(nil)
var _ streambox.PendingCounter = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for finish times.
func WithClock(clock streambox.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

type entry struct {
	record     streambox.Record
	seq        uint64
	finishedAt time.Time
}

// Store is an in-memory streambox.Store.
type Store struct {
	clock streambox.Clock

	mu      sync.Mutex
	seq     uint64
	records map[uuid.UUID]*entry
	claimed map[uuid.UUID]struct{}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[uuid.UUID]*entry),
		claimed: make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = streambox.SystemClock{}
	}

	return s
}

// Save implements streambox.Store.
func (s *Store) Save(ctx context.Context, record streambox.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if sc := scopeFrom(ctx); sc != nil {
		s.mu.Lock()
		_, exists := s.records[record.ID]
		s.mu.Unlock()
		if exists || sc.saved(record.ID) {
			return fmt.Errorf("memstore: save %s: %w", record.ID, streambox.ErrDuplicateRecord)
		}
		sc.stageSave(record)

		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(record)
}

// LockNextBatch implements streambox.Store.
func (s *Store) LockNextBatch(_ context.Context, limit int) (streambox.Batch, error) {
	if limit <= 0 {
		return nil, streambox.ErrInvalidBatchSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := make([]*entry, 0)
	for id, e := range s.records {
		if e.record.Status != streambox.StatusPending {
			continue
		}
		if _, ok := s.claimed[id]; ok {
			continue
		}
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.record.CreatedAt.Equal(b.record.CreatedAt) {
			return a.record.CreatedAt.Before(b.record.CreatedAt)
		}

		return a.seq < b.seq
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	records := make([]streambox.Record, len(candidates))
	for i, e := range candidates {
		s.claimed[e.record.ID] = struct{}{}
		records[i] = e.record
	}

	return &batch{store: s, records: records, scope: &scope{}}, nil
}

// Finish implements streambox.Store.
func (s *Store) Finish(ctx context.Context, record streambox.Record) error {
	if sc := scopeFrom(ctx); sc != nil {
		s.mu.Lock()
		_, exists := s.records[record.ID]
		s.mu.Unlock()
		if !exists && !sc.saved(record.ID) {
			return fmt.Errorf("memstore: finish %s: %w", record.ID, streambox.ErrRecordNotFound)
		}
		sc.stageFinish(record.ID)

		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.finishLocked(record.ID, s.clock.Now())
}

// Atomic implements streambox.Store. Writes performed by fn are staged in a child scope
// that is merged into the enclosing scope, or applied directly when there is none.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	parent := scopeFrom(ctx)
	child := &scope{}
	if err := fn(withScope(ctx, child)); err != nil {
		return err
	}
	if parent != nil {
		parent.merge(child)

		return nil
	}

	return s.apply(child)
}

// PendingCount implements streambox.PendingCounter.
func (s *Store) PendingCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.records {
		if e.record.Status == streambox.StatusPending {
			count++
		}
	}

	return count, nil
}

// Get returns a copy of the stored record.
func (s *Store) Get(id uuid.UUID) (streambox.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[id]
	if !ok {
		return streambox.Record{}, false
	}

	return e.record, true
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

func (s *Store) apply(sc *scope) error {
	saves, finishes := sc.ops()

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[uuid.UUID]struct{}, len(saves))
	for _, record := range saves {
		if _, ok := s.records[record.ID]; ok {
			return fmt.Errorf("memstore: save %s: %w", record.ID, streambox.ErrDuplicateRecord)
		}
		if _, ok := staged[record.ID]; ok {
			return fmt.Errorf("memstore: save %s: %w", record.ID, streambox.ErrDuplicateRecord)
		}
		staged[record.ID] = struct{}{}
	}
	// Nothing is mutated until every finish target is known to exist.
	for _, id := range finishes {
		_, stored := s.records[id]
		_, saved := staged[id]
		if !stored && !saved {
			return fmt.Errorf("memstore: finish %s: %w", id, streambox.ErrRecordNotFound)
		}
	}
	for _, record := range saves {
		if err := s.insertLocked(record); err != nil {
			return err
		}
	}
	now := s.clock.Now()
	for _, id := range finishes {
		if err := s.finishLocked(id, now); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) insertLocked(record streambox.Record) error {
	if _, ok := s.records[record.ID]; ok {
		return fmt.Errorf("memstore: save %s: %w", record.ID, streambox.ErrDuplicateRecord)
	}
	s.seq++
	s.records[record.ID] = &entry{record: record, seq: s.seq}

	return nil
}

func (s *Store) finishLocked(id uuid.UUID, now time.Time) error {
	e, ok := s.records[id]
	if !ok {
		return fmt.Errorf("memstore: finish %s: %w", id, streambox.ErrRecordNotFound)
	}
	if e.record.Status == streambox.StatusFinished {
		return nil
	}
	e.record.Status = streambox.StatusFinished
	e.finishedAt = now

	return nil
}

func (s *Store) release(records []streambox.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		delete(s.claimed, record.ID)
	}
}
