// Package store is the in-memory registry of active call sessions. Each
// entry is logically owned by exactly one connection handler for its entire
// lifetime; the store itself only guards against different handlers touching
// the map concurrently and against a late event racing eviction.
package store

import (
	"log/slog"
	"sync"

	"github.com/Vipr728/Cascadia/pkg/relay/language"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one utterance or reply. Immutable once appended; arrival order is
// the only ordering guarantee the relay provides.
type Turn struct {
	Role string
	Text string
}

// Snapshot is a point-in-time copy of one session's state. History is copied
// so callers never observe concurrent mutation.
type Snapshot struct {
	CallSid  string
	History  []Turn
	Language language.Language
}

type session struct {
	history []Turn
	lang    language.Language
}

type Store struct {
	mu       sync.Mutex
	logger   *slog.Logger
	sessions map[string]*session
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Create registers a session with an empty history. Creating an existing
// callSid overwrites it rather than merging.
func (s *Store) Create(callSid string, lang language.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[callSid] = &session{
		history: make([]Turn, 0, 16),
		lang:    lang,
	}
}

// Append adds a turn to a session's history. An unknown callSid is logged
// and dropped; the relay tolerates stray or out-of-order events.
func (s *Store) Append(callSid string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[callSid]
	if !ok {
		s.logger.Warn("dropping turn for unknown session", "call_sid", callSid, "role", turn.Role)
		return
	}
	entry.history = append(entry.history, turn)
}

func (s *Store) Get(callSid string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[callSid]
	if !ok {
		return Snapshot{}, false
	}
	history := make([]Turn, len(entry.history))
	copy(history, entry.history)
	return Snapshot{CallSid: callSid, History: history, Language: entry.lang}, true
}

func (s *Store) SetLanguage(callSid string, lang language.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[callSid]
	if !ok {
		s.logger.Warn("language update for unknown session", "call_sid", callSid, "language", lang.Code)
		return
	}
	entry.lang = lang
}

func (s *Store) Evict(callSid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callSid)
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
