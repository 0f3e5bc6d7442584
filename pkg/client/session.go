package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/noah-isme/creche-api/pkg/navigation"
)

// SessionFile is the name of the persisted session under the data directory.
const SessionFile = "session.json"

// Session is an immutable snapshot of the signed-in user. Values are replaced
// wholesale, never edited in place.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Destination is where this session lands.
func (s Session) Destination() navigation.Destination {
	return navigation.Resolve(s.AccessToken != "", s.Role)
}

// SessionStore holds the current session. It is the only writer of the
// session value; login, refresh and logout all go through replace.
type SessionStore struct {
	path string

	mu      sync.RWMutex
	current *Session
	subs    map[int]func(Session, bool)
	nextSub int
}

// OpenSessionStore loads dir/session.json if present. An empty dir keeps the
// session in memory only. A corrupt file is treated as signed out.
func OpenSessionStore(dir string) (*SessionStore, error) {
	store := &SessionStore{subs: map[int]func(Session, bool){}}
	if dir == "" {
		return store, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	store.path = filepath.Join(dir, SessionFile)

	raw, err := os.ReadFile(store.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return store, nil
	case err != nil:
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if json.Unmarshal(raw, &s) == nil && s.AccessToken != "" {
		store.current = &s
	}
	return store, nil
}

// Current returns a copy of the session and whether one is present.
func (st *SessionStore) Current() (Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.current == nil {
		return Session{}, false
	}
	return *st.current, true
}

// Destination resolves the landing screen for the current session.
func (st *SessionStore) Destination() navigation.Destination {
	s, ok := st.Current()
	if !ok {
		return navigation.DestinationLogin
	}
	return s.Destination()
}

// Subscribe calls fn after every session change. The returned func unsubscribes.
func (st *SessionStore) Subscribe(fn func(s Session, present bool)) func() {
	st.mu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	st.mu.Unlock()
	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

// replace persists next (nil signs out), swaps it in and notifies subscribers.
func (st *SessionStore) replace(next *Session) error {
	st.mu.Lock()
	if err := st.persist(next); err != nil {
		st.mu.Unlock()
		return err
	}
	st.current = next
	subs := make([]func(Session, bool), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()

	var value Session
	if next != nil {
		value = *next
	}
	for _, fn := range subs {
		fn(value, next != nil)
	}
	return nil
}

func (st *SessionStore) persist(next *Session) error {
	if st.path == "" {
		return nil
	}
	if next == nil {
		if err := os.Remove(st.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(st.path), ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
