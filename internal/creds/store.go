// Package creds is the credential cache behind the session state machine:
// the persisted bearer token plus the last known user. The state machine
// never touches the filesystem directly, which keeps bootstrap testable with
// the in-memory store.
package creds

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"codechat/internal/api"
)

type Credentials struct {
	Token string    `json:"token"`
	User  *api.User `json:"user,omitempty"`
}

// Store also satisfies api.TokenStore, so the gateway client can purge the
// cache on an auth failure without knowing anything else about it.
type Store interface {
	Load() (Credentials, bool)
	Save(Credentials) error
	SetLanguage(language string) error
	Token() string
	Clear() error
}

// FileStore keeps credentials as one JSON file under the state dir. The
// mutex matters: the gateway may call Clear from a command goroutine while
// the event loop reads.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(stateDir string) *FileStore {
	return &FileStore{path: filepath.Join(stateDir, "credentials.json")}
}

func (s *FileStore) Load() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (Credentials, bool) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Credentials{}, false
	}
	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credentials{}, false
	}
	if c.Token == "" {
		return Credentials{}, false
	}
	return c, true
}

func (s *FileStore) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(c)
}

func (s *FileStore) write(c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(b, '\n'), 0o600)
}

func (s *FileStore) SetLanguage(language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.read()
	if !ok || c.User == nil {
		return nil
	}
	c.User.Language = language
	return s.write(c)
}

func (s *FileStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.read()
	if !ok {
		return ""
	}
	return c.Token
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemStore is the in-memory Store used by tests.
type MemStore struct {
	mu    sync.Mutex
	creds Credentials
	has   bool
}

func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) Load() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds, s.has
}

func (s *MemStore) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = c
	s.has = c.Token != ""
	return nil
}

func (s *MemStore) SetLanguage(language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.has && s.creds.User != nil {
		s.creds.User.Language = language
	}
	return nil
}

func (s *MemStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return ""
	}
	return s.creds.Token
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	s.has = false
	return nil
}
