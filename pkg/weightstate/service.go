package weightstate

import (
	"github.com/NotCoffee418/scale_gateway/pkg/types"
	"github.com/rs/zerolog/log"
)

// NewStore creates an empty store. Capacities below 1 are treated as 1.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{capacity: capacity}
}

func (s *Store) Capacity() int {
	return s.capacity
}

// RecordReading makes r the last seen reading and adds it to the pending
// deliveries.
func (s *Store) RecordReading(r types.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = r
	s.hasLast = true

	if s.capacity == 1 {
		if s.slot > 0 && s.slot != r.Weight {
			log.Warn().Msgf("undelivered weight %.2f replaced by %.2f", s.slot, r.Weight)
		}
		s.slot = r.Weight
		return
	}

	if r.Weight <= 0 {
		return
	}
	s.queue = append(s.queue, r.Weight)
	if len(s.queue) > s.capacity {
		log.Warn().Msgf("pending queue full, dropping undelivered weight %.2f", s.queue[0])
		s.queue = s.queue[1:]
	}
}

// PeekPending returns the weight due for delivery, 0 when there is none.
func (s *Store) PeekPending() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peekLocked()
}

// ConfirmDelivered clears the weight PeekPending returned. The last reading
// is left alone.
func (s *Store) ConfirmDelivered() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity == 1 {
		s.slot = 0
		return
	}
	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		PendingWeight: s.peekLocked(),
		PendingCount:  s.countLocked(),
	}
	if s.hasLast {
		at := s.last.ObservedAt
		snap.LastWeight = s.last.Weight
		snap.LastMeasuredAt = &at
		snap.DetectedProtocol = s.last.SourceProtocol
	}
	return snap
}

func (s *Store) peekLocked() float64 {
	if s.capacity == 1 {
		return s.slot
	}
	if len(s.queue) == 0 {
		return 0
	}
	return s.queue[0]
}

func (s *Store) countLocked() int {
	if s.capacity == 1 {
		if s.slot > 0 {
			return 1
		}
		return 0
	}
	return len(s.queue)
}
