// Package flow implements the conversational core of LeadPilot: the
// per-sender pending-context store, the intent classifier, the dialogue
// router, and the workflow handlers it dispatches to.
package flow

import (
	"sync"

	"github.com/richa-2701/leadpilot/internal/models"
)

// PendingContext records that a multi-turn dialogue is in progress for a
// sender and what the next message is expected to supply.
type PendingContext struct {
	State   models.DialogState
	Company string
	// Missing lists the field labels the sender was prompted for, in order.
	Missing []string
}

// ContextStore maps sender identity to at most one PendingContext. It is an
// in-process map guarded by a mutex: single-process deployments only. A
// horizontally scaled deployment would lose or fragment context.
type ContextStore struct {
	mu       sync.RWMutex
	contexts map[string]PendingContext
}

// NewContextStore creates an empty ContextStore.
func NewContextStore() *ContextStore {
	return &ContextStore{contexts: make(map[string]PendingContext)}
}

// Get returns the pending context for a sender, if any.
func (s *ContextStore) Get(sender string) (PendingContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.contexts[sender]
	return pc, ok
}

// Set stores a pending context for a sender, silently overwriting any
// existing one. A sender has at most one pending dialogue.
func (s *ContextStore) Set(sender string, pc PendingContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[sender] = pc
}

// Clear removes the pending context for a sender.
func (s *ContextStore) Clear(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, sender)
}
