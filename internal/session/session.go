// Package session holds the per-login working state: the platform
// credentials, the cached chat set for the active date window, the
// resolved manager directory, and the latest evaluation batch. All of
// it is in-memory; only the credentials persist across restarts.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"chat-quality-go/internal/directory"
	"chat-quality-go/internal/evaluator"
	"chat-quality-go/internal/types"
)

// Credentials identify one platform account.
type Credentials struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

// Session is the supervisor's working context. Every accessor takes the
// lock; loads that can race are fenced by an epoch counter (see
// BeginLoad).
type Session struct {
	ID string

	mu        sync.Mutex
	creds     Credentials
	chats     []types.Chat
	managers  []types.Manager
	results   []types.EvaluationResult
	directory *directory.Directory
	lastRun   evaluator.Request
	epoch     uint64
}

// New opens a session for the given credentials.
func New(creds Credentials) *Session {
	return &Session{ID: uuid.NewString(), creds: creds}
}

// Credentials returns the session's platform credentials.
func (s *Session) Credentials() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// BeginLoad starts a chat reload and returns its epoch. A reload that
// started earlier and finishes later must not clobber newer data:
// CommitChats refuses any epoch but the latest.
func (s *Session) BeginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// CommitChats installs a loaded chat set and its derived manager list.
// Returns false without touching state when a newer load has started
// since epoch was issued.
func (s *Session) CommitChats(epoch uint64, chats []types.Chat, managers []types.Manager) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.chats = chats
	s.managers = managers
	return true
}

// Chats returns the cached chat set.
func (s *Session) Chats() []types.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chats
}

// Managers returns the manager list derived from the cached chats.
func (s *Session) Managers() []types.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managers
}

// SetDirectory caches the resolved user directory for the session.
func (s *Session) SetDirectory(d *directory.Directory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory = d
}

// Directory returns the cached user directory, nil before the first load.
func (s *Session) Directory() *directory.Directory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.directory
}

// SetResults replaces the latest evaluation batch along with the
// request that produced it; rescoring reuses the request's candidate
// filter.
func (s *Session) SetResults(req evaluator.Request, results []types.EvaluationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = req
	s.results = results
}

// LastRun returns the request behind the current batch.
func (s *Session) LastRun() evaluator.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Results returns the latest evaluation batch.
func (s *Session) Results() []types.EvaluationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// UpdateResults applies fn to the current batch under the lock. fn
// receives the live slice and returns its replacement.
func (s *Session) UpdateResults(fn func([]types.EvaluationResult) ([]types.EvaluationResult, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, err := fn(s.results)
	if err != nil {
		return err
	}
	s.results = updated
	return nil
}

// Store tracks the single active session. The dashboard serves one
// supervisor at a time; logging in again replaces the session.
type Store struct {
	mu      sync.Mutex
	current *Session
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{}
}

// Open replaces the active session with a fresh one.
func (st *Store) Open(creds Credentials) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = New(creds)
	return st.current
}

// Active returns the current session or an error when nobody is logged
// in.
func (st *Store) Active() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current == nil {
		return nil, fmt.Errorf("no active session")
	}
	return st.current, nil
}

// Close drops the active session.
func (st *Store) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = nil
}
