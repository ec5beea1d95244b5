// Package client holds the conversation-side bookkeeping a chat client
// keeps: an optimistic local copy of the conversation that speculatively
// shows sent messages before the server confirms them.
package client

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"murmur/internal/chat"
)

// EntryState is the reconciliation state machine. A speculative entry is
// pending until the server answers: the authoritative record confirms it,
// a failed call rolls it back to the pre-call state.
type EntryState int

const (
	StatePending EntryState = iota
	StateConfirmed
	StateRolledBack
)

type Entry struct {
	CorrelationID string
	State         EntryState
	Message       chat.Message
}

// Store is the local write-ahead buffer for one conversation.
type Store struct {
	mu      sync.Mutex
	entries []Entry
}

func NewStore() *Store {
	return &Store{}
}

// AppendPending inserts a speculative entry and returns the correlation id
// used to match the server's response.
func (s *Store) AppendPending(m chat.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.entries = append(s.entries, Entry{CorrelationID: id, State: StatePending, Message: m})
	return id
}

// Confirm replaces the pending entry with the authoritative record. Returns
// false if the correlation id is unknown or the entry already left pending.
func (s *Store) Confirm(correlationID string, m chat.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		e := &s.entries[i]
		if e.CorrelationID == correlationID && e.State == StatePending {
			e.State = StateConfirmed
			e.Message = m
			return true
		}
	}
	return false
}

// Rollback marks the pending entry rolled back, restoring the pre-call view.
func (s *Store) Rollback(correlationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		e := &s.entries[i]
		if e.CorrelationID == correlationID && e.State == StatePending {
			e.State = StateRolledBack
			return true
		}
	}
	return false
}

// ApplyNewMessage folds a pushed newMessage event into the view. A message
// already confirmed under the same server id is left alone, so the sender
// doesn't see its own message twice.
func (s *Store) ApplyNewMessage(m chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.State == StateConfirmed && e.Message.ID == m.ID {
			return
		}
	}
	s.entries = append(s.entries, Entry{State: StateConfirmed, Message: m})
}

// Replace swaps the whole view for a fetched conversation, dropping any
// non-pending local state. Pending entries survive: their calls are still
// in flight.
func (s *Store) Replace(messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := lo.Filter(s.entries, func(e Entry, _ int) bool {
		return e.State == StatePending
	})

	entries := make([]Entry, 0, len(messages)+len(pending))
	for _, m := range messages {
		entries = append(entries, Entry{State: StateConfirmed, Message: m})
	}
	s.entries = append(entries, pending...)
}

// Messages returns the visible conversation: confirmed and pending entries
// in insertion order. Rolled-back entries are invisible.
func (s *Store) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := lo.Filter(s.entries, func(e Entry, _ int) bool {
		return e.State != StateRolledBack
	})
	return lo.Map(visible, func(e Entry, _ int) chat.Message {
		return e.Message
	})
}

// Pending reports how many calls are still awaiting a server response.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.CountBy(s.entries, func(e Entry) bool {
		return e.State == StatePending
	})
}
