package session

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// TokenStore persists the single credential token of the signed-in user.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Remove() error
}

type tokenFile struct {
	Token string `yaml:"token"`
}

// FileTokenStore keeps the token in a YAML file readable by the owner only.
type FileTokenStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	token  string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.token, nil
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %s", s.path)
	}
	var content tokenFile
	if err := yaml.Unmarshal(data, &content); err != nil {
		return "", errors.Wrapf(err, "parse %s", s.path)
	}
	s.token, s.loaded = content.Token, true
	return s.token, nil
}

// Set keeps the token in memory even when writing the file fails, so the
// running process stays signed in.
func (s *FileTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.loaded = token, true

	data, err := yaml.Marshal(tokenFile{Token: token})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrapf(err, "create session dir for %s", s.path)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return errors.Wrapf(os.Rename(tmp, s.path), "replace %s", s.path)
}

func (s *FileTokenStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.loaded = "", true
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %s", s.path)
	}
	return nil
}

// Token implements http.TokenSource.
func (s *FileTokenStore) Token() string {
	token, err := s.Get()
	if err != nil {
		logrus.WithError(err).Warn("Failed to read stored credential")
	}
	return token
}

type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) Remove() error {
	return s.Set("")
}

func (s *MemoryTokenStore) Token() string {
	token, _ := s.Get()
	return token
}
