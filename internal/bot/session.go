package bot

import (
	"sync"

	"derroche/internal/models"
	"derroche/internal/services"
)

// Step is the position of a user in the manual entry conversation.
type Step int

const (
	StepIdle Step = iota
	StepMenu
	StepAwaitPhoto
	StepDate
	StepAmount
	StepExpenseType
	StepCategory
	StepBank
	StepDescription
	StepPaymentMethod
)

// pendingEdit is a single-field edit waiting for the user's next message.
type pendingEdit struct {
	RecordID uint
	Field    models.EditField
}

// Session is the per-user conversation state.
type Session struct {
	Step  Step
	Draft services.ManualEntry
	// ReplaceRecordID is set when the manual entry completes a failed photo record.
	ReplaceRecordID uint
	Edit            *pendingEdit
}

func (s *Session) reset() {
	*s = Session{}
}

// formActive reports whether the user is filling in the manual form.
func (s *Session) formActive() bool {
	return s.Step >= StepDate && s.Step <= StepPaymentMethod
}

func (s *Session) idle() bool {
	return s.Step == StepIdle && s.Edit == nil
}

type sessionEntry struct {
	mu sync.Mutex
	// refs counts holders and waiters; guarded by SessionStore.mu.
	refs    int
	session Session
}

// SessionStore keeps conversation state in memory, keyed by user. Idle
// sessions are dropped once released.
type SessionStore struct {
	mu      sync.Mutex
	entries map[int64]*sessionEntry
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{entries: make(map[int64]*sessionEntry)}
}

// Acquire locks the session of userID and returns it with its unlock func.
// Updates from one user are handled one at a time.
func (s *SessionStore) Acquire(userID int64) (*Session, func()) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok {
		e = &sessionEntry{}
		s.entries[userID] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return &e.session, func() {
		idle := e.session.idle()
		e.mu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		e.refs--
		if e.refs == 0 && idle {
			delete(s.entries, userID)
		}
	}
}

// Len returns the number of users with state.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
