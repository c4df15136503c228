package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jordan/alivia/internal/observability"
	"github.com/rs/zerolog/log"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultWindowPairs is the number of retained turn-pairs per session
const DefaultWindowPairs = 4

// Message represents a single conversation message
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// sessionState holds the mutable state of one session
type sessionState struct {
	history    []Message
	greeted    bool
	name       string
	lastActive time.Time
}

// Store manages conversation sessions in memory
type Store struct {
	windowPairs int

	mu       sync.RWMutex
	sessions map[string]*sessionState

	turnLocks map[string]*sync.Mutex
	locksMu   sync.Mutex
}

// Config holds store configuration
type Config struct {
	WindowPairs int
}

// NewStore creates a new session store
func NewStore(cfg Config) *Store {
	observability.EnsureRegistered()

	windowPairs := cfg.WindowPairs
	if windowPairs <= 0 {
		windowPairs = DefaultWindowPairs
	}

	s := &Store{
		windowPairs: windowPairs,
		sessions:    make(map[string]*sessionState),
		turnLocks:   make(map[string]*sync.Mutex),
	}

	log.Info().Int("window_pairs", windowPairs).Msg("Session store initialized")
	return s
}

// GetOrCreateID returns the provided session ID unchanged, or allocates a
// fresh one when empty.
func (s *Store) GetOrCreateID(providedID string) string {
	if providedID != "" {
		return providedID
	}
	return uuid.New().String()
}

// getOrCreate returns the session state for id, creating it when unknown.
// Callers must hold s.mu for writing.
func (s *Store) getOrCreate(id string) *sessionState {
	state, ok := s.sessions[id]
	if !ok {
		state = &sessionState{lastActive: time.Now()}
		s.sessions[id] = state
		observability.SetActiveSessions(len(s.sessions))
		log.Debug().Str("session_id", id).Msg("Session created")
	}
	return state
}

// GetOrCreate ensures a session exists for id.
func (s *Store) GetOrCreate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(id)
}

// HasGreeted reports whether the session has been greeted. Unknown sessions
// report false without being created.
func (s *Store) HasGreeted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	return ok && state.greeted
}

// MarkGreeted flips the session's greeted flag, creating the session if needed.
func (s *Store) MarkGreeted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreate(id)
	state.greeted = true
	state.lastActive = time.Now()
}

// Name returns the captured user name for the session, if any.
func (s *Store) Name(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok || state.name == "" {
		return "", false
	}
	return state.name, true
}

// SetName stores the user's name for the session, creating it if needed.
func (s *Store) SetName(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreate(id)
	state.name = name
	state.lastActive = time.Now()
}

// History returns a copy of the retained message window, oldest first.
// The second return is false when the session was never created.
func (s *Store) History(id string) ([]Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	history := make([]Message, len(state.history))
	copy(history, state.history)
	return history, true
}

// AppendTurn appends a completed (user, assistant) pair to the session
// history, then evicts the oldest messages beyond the window.
func (s *Store) AppendTurn(id, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	state := s.getOrCreate(id)
	state.history = append(state.history,
		Message{Role: RoleUser, Content: userText, Timestamp: now},
		Message{Role: RoleAssistant, Content: assistantText, Timestamp: now},
	)
	state.lastActive = now

	maxMessages := s.windowPairs * 2
	if len(state.history) > maxMessages {
		overflow := len(state.history) - maxMessages
		state.history = append(state.history[:0:0], state.history[overflow:]...)
	}

	log.Debug().
		Str("session_id", id).
		Int("messages", len(state.history)).
		Msg("Turn appended")
}

// Touch refreshes the session's last-active timestamp.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.sessions[id]; ok {
		state.lastActive = time.Now()
	}
}

// Clear removes all state for the session. Subsequent references create a
// fresh session. The turn lock stays registered so a turn in flight for the
// id keeps excluding new turns while it finishes.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		observability.SetActiveSessions(len(s.sessions))
		log.Info().Str("session_id", id).Msg("Session cleared")
	}
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// LockTurn acquires the turn lock for a session, serializing turns for the
// same session ID.
func (s *Store) LockTurn(id string) {
	s.turnLock(id).Lock()
}

// UnlockTurn releases the turn lock for a session.
func (s *Store) UnlockTurn(id string) {
	s.turnLock(id).Unlock()
}

func (s *Store) turnLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.turnLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.turnLocks[id] = lock
	}
	return lock
}

// evictIdle removes sessions idle longer than ttl and returns how many were
// dropped. Used by the sweeper.
func (s *Store) evictIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var evicted []string
	for id, state := range s.sessions {
		if state.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		observability.SetActiveSessions(len(s.sessions))
	}
	s.mu.Unlock()

	// Drop a turn lock only when no turn holds it. A held lock stays so the
	// in-flight turn keeps its exclusion.
	s.locksMu.Lock()
	for _, id := range evicted {
		if lock, ok := s.turnLocks[id]; ok && lock.TryLock() {
			delete(s.turnLocks, id)
			lock.Unlock()
		}
	}
	s.locksMu.Unlock()

	return len(evicted)
}
