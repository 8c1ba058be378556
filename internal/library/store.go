// Package library persists reading progress and the list of opened books.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// StateFile is the name of the state file inside the state directory.
const StateFile = "app_state.json"

// ErrNoState is returned when no saved state exists for a request.
var ErrNoState = errors.New("library: no saved state")

// Book is a library entry.
type Book struct {
	Path         string    `json:"path"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	LastRead     time.Time `json:"last_read"`
	ChapterIndex int       `json:"chapter_index"`
}

// Progress is the saved reading position of one book. ChapterIndex is a
// spine index.
type Progress struct {
	ChapterIndex int       `json:"chapter_index"`
	LastRead     time.Time `json:"last_read"`
}

// State is the persisted document.
type State struct {
	LastBook        string              `json:"last_book,omitempty"`
	ReadingProgress map[string]Progress `json:"reading_progress"`
	Library         []Book              `json:"library"`
}

// Options configures a Store.
type Options struct {
	Logger *slog.Logger
	// Now overrides the clock.
	Now func() time.Time
}

// Store is a JSON-file backed State. Every mutation is written through to
// disk. A Store is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	path  string
	state State
	now   func() time.Time
	log   *slog.Logger
}

// DefaultDir returns the per-user state directory.
func DefaultDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "fast_epub"), nil
}

// Open loads the state kept in dir. A missing or unreadable state file
// yields an empty state; the directory is created on first save.
func Open(dir string, opts Options) *Store {
	s := &Store{
		path: filepath.Join(dir, StateFile),
		now:  opts.Now,
		log:  opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}

	if err := s.load(); err != nil {
		if errors.Is(err, ErrNoState) {
			s.log.Debug("no saved state", "path", s.path)
		} else {
			s.log.Warn("ignoring unreadable state file", "path", s.path, "error", err)
		}
		s.state = State{}
	}
	if s.state.ReadingProgress == nil {
		s.state.ReadingProgress = make(map[string]Progress)
	}
	return s
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoState
		}
		return fmt.Errorf("failed to read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse state: %w", err)
	}
	s.state = st
	return nil
}

// save writes the state atomically. Callers hold s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), StateFile+".*")
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// GetProgress returns the saved spine index for the book at path.
func (s *Store) GetProgress(path string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.ReadingProgress[path]
	return p.ChapterIndex, ok
}

// UpdateProgress records position for the book at path, marks it as the
// last opened book and refreshes its library entry.
func (s *Store) UpdateProgress(path string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.state.ReadingProgress[path] = Progress{ChapterIndex: position, LastRead: now}
	s.state.LastBook = path
	for i := range s.state.Library {
		if s.state.Library[i].Path == path {
			s.state.Library[i].ChapterIndex = position
			s.state.Library[i].LastRead = now
			break
		}
	}
	s.log.Debug("updated progress", "path", path, "chapter_index", position)
	return s.save()
}

// AddToLibrary adds a book unless one with the same path is listed.
func (s *Store) AddToLibrary(path, title, author string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.state.Library {
		if b.Path == path {
			return nil
		}
	}
	s.state.Library = append(s.state.Library, Book{
		Path:         path,
		Title:        title,
		Author:       author,
		LastRead:     s.now().UTC(),
		ChapterIndex: position,
	})
	s.log.Debug("added to library", "path", path, "title", title)
	return s.save()
}

// RemoveFromLibrary drops a book and its progress. Removing an unknown book
// returns ErrNoState.
func (s *Store) RemoveFromLibrary(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, b := range s.state.Library {
		if b.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s is not in the library", ErrNoState, path)
	}
	s.state.Library = append(s.state.Library[:idx], s.state.Library[idx+1:]...)
	delete(s.state.ReadingProgress, path)
	if s.state.LastBook == path {
		s.state.LastBook = ""
	}
	return s.save()
}

// Library returns the books, most recently read first.
func (s *Store) Library() []Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := append([]Book(nil), s.state.Library...)
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].LastRead.After(books[j].LastRead)
	})
	return books
}

// LastBook returns the last opened book and its saved position, or
// ErrNoState.
func (s *Store) LastBook() (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.LastBook == "" {
		return "", 0, ErrNoState
	}
	p, ok := s.state.ReadingProgress[s.state.LastBook]
	if !ok {
		return "", 0, ErrNoState
	}
	return s.state.LastBook, p.ChapterIndex, nil
}
