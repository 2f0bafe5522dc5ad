// Package session keeps per-conversation history in memory for the
// lifetime of the process. History is bounded: only the most recent
// exchanges are retained and fed back to the model.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of query/answer exchanges retained
// per session when no limit is configured.
const DefaultMaxHistory = 2

// Exchange is one completed query/answer pair.
type Exchange struct {
	Query  string
	Answer string
}

type session struct {
	mu        sync.Mutex
	exchanges []Exchange
}

// Store holds all live sessions. Safe for concurrent use: the outer
// map is guarded by an RWMutex, and each session serializes its own
// appends so concurrent writers to one session cannot interleave or
// lose exchanges.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*session
	maxHistory int
}

// NewStore creates a Store retaining at most maxHistory exchanges per
// session. Zero means retain nothing: every query runs without prior
// context. Negative values fall back to DefaultMaxHistory.
func NewStore(maxHistory int) *Store {
	if maxHistory < 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string]*session),
		maxHistory: maxHistory,
	}
}

// NewID returns a fresh unique session identifier. The session itself
// materializes on first AddExchange.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// get returns the session for id, creating it if needed.
func (s *Store) get(id string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{}
	s.sessions[id] = sess
	return sess
}

// AddExchange appends a completed exchange to the session, creating
// the session on first use. The oldest exchange is evicted once the
// history limit is reached. With a zero limit nothing is stored and
// no session materializes.
func (s *Store) AddExchange(id, query, answer string) {
	if s.maxHistory == 0 {
		return
	}
	sess := s.get(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.exchanges = append(sess.exchanges, Exchange{Query: query, Answer: answer})
	if excess := len(sess.exchanges) - s.maxHistory; excess > 0 {
		sess.exchanges = append([]Exchange(nil), sess.exchanges[excess:]...)
	}
}

// History returns a copy of the retained exchanges, oldest first.
// An unknown id yields an empty history.
func (s *Store) History(id string) []Exchange {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]Exchange, len(sess.exchanges))
	copy(out, sess.exchanges)
	return out
}

// FormattedHistory renders the retained exchanges as alternating
// "User:"/"Assistant:" lines for inclusion in the model prompt.
// Empty history renders as the empty string.
func (s *Store) FormattedHistory(id string) string {
	exchanges := s.History(id)
	if len(exchanges) == 0 {
		return ""
	}

	var b strings.Builder
	for i, e := range exchanges {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "User: %s\nAssistant: %s", e.Query, e.Answer)
	}
	return b.String()
}

// Count reports the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
