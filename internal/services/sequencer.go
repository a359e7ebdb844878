package services

import (
	"sync"

	"flowsmith/backend/internal/apperr"
)

// Sequencer orders responses per entity. Each request takes a number from
// Next before its outbound call; Apply runs the write only if no later
// number has been applied for the same key.
type Sequencer struct {
	entity string
	mu     sync.Mutex
	keys   map[string]*seqState
}

type seqState struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// NewSequencer creates a Sequencer whose race errors name entity.
func NewSequencer(entity string) *Sequencer {
	return &Sequencer{entity: entity, keys: make(map[string]*seqState)}
}

func (s *Sequencer) state(key string) *seqState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.keys[key]
	if !ok {
		st = &seqState{}
		s.keys[key] = st
	}
	return st
}

// Next issues the next sequence number for key.
func (s *Sequencer) Next(key string) uint64 {
	st := s.state(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.issued++
	return st.issued
}

// Apply runs write for seq unless a newer sequence number was already
// applied, in which case it returns *apperr.RaceError. Writes for one key
// never overlap.
func (s *Sequencer) Apply(key string, seq uint64, write func() error) error {
	st := s.state(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if seq <= st.applied {
		return &apperr.RaceError{Entity: s.entity, ID: key, Seq: seq, Applied: st.applied}
	}
	if err := write(); err != nil {
		return err
	}
	st.applied = seq
	return nil
}
