package handlers

import (
	"sync"

	"github.com/xavierca1/leadboard/internal/board"
)

// SessionStore keeps one drag session per user and board.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*board.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*board.Session)}
}

func (s *SessionStore) Get(actorID, pipelineID string) *board.Session {
	key := actorID + "\x00" + pipelineID

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = board.NewSession()
		s.sessions[key] = sess
	}
	return sess
}
