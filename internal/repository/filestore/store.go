// Package filestore keeps users and notes as two JSON arrays on disk.
//
// Every call reads both files, and every mutating call rewrites both of them
// in full. A single mutex serialises load-modify-save cycles inside the
// process; files are replaced by atomic rename.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
)

const (
	usersFile = "users.json"
	notesFile = "notes.json"
	filePerm  = 0o600
)

type userRecord struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	PwdHash   []byte    `json:"pwd_hash"`
	Salt      []byte    `json:"salt"`
	CreatedAt time.Time `json:"created_at"`
}

type noteRecord struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    uuid.UUID `json:"userId"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Shared    bool      `json:"shared"`
	Version   int64     `json:"version"`
}

type collections struct {
	users []userRecord
	notes []noteRecord
}

// Store is the JSON-file data store shared by UserRepo and NoteRepo.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New prepares dir and creates empty collections if they are absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureFiles(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Users returns a UserRepository view of the store.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Notes returns a NoteRepository view of the store.
func (s *Store) Notes() *NoteRepo { return &NoteRepo{s: s} }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) ensureFiles() error {
	for _, name := range []string{usersFile, notesFile} {
		_, err := os.Stat(s.path(name))
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := writeFileAtomic(s.path(name), []byte("[]"), filePerm); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load() (*collections, error) {
	if err := s.ensureFiles(); err != nil {
		return nil, err
	}
	var c collections
	if err := readJSON(s.path(usersFile), &c.users); err != nil {
		return nil, err
	}
	if err := readJSON(s.path(notesFile), &c.notes); err != nil {
		return nil, err
	}
	for i := range c.notes {
		// files written before versioning carry no version
		if c.notes[i].Version == 0 {
			c.notes[i].Version = 1
		}
	}
	return &c, nil
}

func (s *Store) save(c *collections) error {
	if err := writeJSON(s.path(usersFile), c.users); err != nil {
		return err
	}
	return writeJSON(s.path(notesFile), c.notes)
}

// view runs fn over a fresh snapshot of both collections.
func (s *Store) view(ctx context.Context, fn func(c *collections) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.load()
	if err != nil {
		return err
	}
	return fn(c)
}

// update runs fn over a fresh snapshot and persists both collections if fn succeeds.
func (s *Store) update(ctx context.Context, fn func(c *collections) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.save(c)
}

func readJSON(path string, dst any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b, filePerm)
}
