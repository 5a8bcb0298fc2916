package ui

import (
	"time"

	"riskscore/domain/report"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SessionCookie carries the browser session id
const SessionCookie = "riskscore_session"

// sessionMaxAge is the cookie lifetime in seconds
const sessionMaxAge = 12 * 60 * 60

// Advice is the last generated recommendation of a session, bound to the
// attributes it was generated for.
type Advice struct {
	Key       string
	Language  report.Language
	Text      string
	CreatedAt time.Time
}

// SessionStore keeps per-browser state in a bounded LRU. Evicted sessions
// just lose their last recommendation.
type SessionStore struct {
	advice *lru.Cache[string, Advice]
}

// NewSessionStore holds at most capacity sessions
func NewSessionStore(capacity int) (*SessionStore, error) {
	c, err := lru.New[string, Advice](capacity)
	if err != nil {
		return nil, err
	}
	return &SessionStore{advice: c}, nil
}

// Advice returns the session's recommendation if it was generated for the
// attributes identified by key. A recommendation never outlives a change of
// inputs.
func (s *SessionStore) Advice(session, key string) (Advice, bool) {
	a, ok := s.advice.Get(session)
	if !ok || a.Key != key {
		return Advice{}, false
	}
	return a, true
}

// SetAdvice replaces the session's recommendation
func (s *SessionStore) SetAdvice(session string, a Advice) {
	s.advice.Add(session, a)
}

// Len returns the number of sessions holding a recommendation
func (s *SessionStore) Len() int {
	return s.advice.Len()
}
