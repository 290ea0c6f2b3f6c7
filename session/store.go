// Package session keeps per-conversation history in process memory.
package session

import (
	"sync"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    string
	Content string
}

// Store holds a bounded rolling history per session id. The store map and
// each session have their own locks: appends to the same session
// serialize, while different sessions never contend.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*state
	maxTurns int
}

type state struct {
	mu    sync.Mutex
	turns []Turn
}

// New creates a store that keeps at most maxExchanges question/answer
// pairs per session.
func New(maxExchanges int) *Store {
	if maxExchanges <= 0 {
		maxExchanges = 2
	}
	return &Store{
		sessions: make(map[string]*state),
		maxTurns: maxExchanges * 2,
	}
}

// NewID mints a fresh session identifier.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// Append adds a turn to the session, creating it on first use and
// evicting the oldest turns beyond the bound.
func (s *Store) Append(id, role, content string) {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turns = append(sess.turns, Turn{Role: role, Content: content})
	if excess := len(sess.turns) - s.maxTurns; excess > 0 {
		sess.turns = append([]Turn(nil), sess.turns[excess:]...)
	}
}

// AppendExchange records a completed question/answer pair.
func (s *Store) AppendExchange(id, question, answer string) {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turns = append(sess.turns, Turn{Role: RoleUser, Content: question}, Turn{Role: RoleAssistant, Content: answer})
	if excess := len(sess.turns) - s.maxTurns; excess > 0 {
		sess.turns = append([]Turn(nil), sess.turns[excess:]...)
	}
}

// History returns a copy of the session's turns in order. A session that
// was never written to yields nil.
func (s *Store) History(id string) []Turn {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Turn(nil), sess.turns...)
}

// Delete evicts a session. Callers own the lifecycle; nothing in the
// store expires sessions on its own.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Store) getOrCreate(id string) *state {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &state{}
		s.sessions[id] = sess
	}
	return sess
}
