package memstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Xausdorf/btcpay-checkout/internal/domain/session"
	"github.com/Xausdorf/btcpay-checkout/internal/infrastructure/sweeper"
)

// Store is a process-local session.Store. Records expire after ttl.
type Store struct {
	mu   sync.RWMutex
	data map[string]*session.Record
	ttl  time.Duration
	now  func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*session.Record),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *Store) Find(_ context.Context, sessionID string) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[sessionID]
	if !ok || s.expired(record) {
		return nil, nil
	}
	return record, nil
}

// Save keeps the first live record for a session. An expired record is replaced.
func (s *Store) Save(_ context.Context, record *session.Record) (*session.Record, error) {
	if record == nil || !record.Invoice().Usable() {
		return nil, session.ErrInvalidInvoice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[record.SessionID()]; ok && !s.expired(existing) {
		return existing, nil
	}
	s.data[record.SessionID()] = record
	return record, nil
}

// StartSweeper evicts expired records every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	go sweeper.Run(ctx, interval, func(context.Context) (int64, error) {
		return int64(s.sweep()), nil
	}, logger)
}

func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, record := range s.data {
		if s.expired(record) {
			delete(s.data, id)
			evicted++
		}
	}
	return evicted
}

func (s *Store) expired(record *session.Record) bool {
	return s.ttl > 0 && s.now().Sub(record.CreatedAt()) > s.ttl
}
