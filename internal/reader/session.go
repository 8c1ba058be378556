// Package reader keeps track of the open book and the reading position.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/yuanying/fastepub/internal/content"
)

var (
	// ErrNoDocument is returned when no book is open.
	ErrNoDocument = errors.New("reader: no document open")
	// ErrOutOfRange is returned when moving past either end of the spine.
	ErrOutOfRange = errors.New("reader: position out of range")
)

// ProgressStore saves reading positions. Positions are spine indexes.
type ProgressStore interface {
	GetProgress(path string) (int, bool)
	UpdateProgress(path string, position int) error
}

// Library records opened books.
type Library interface {
	AddToLibrary(path, title, author string, position int) error
}

// Session holds the open document and the current spine position. Opening
// a new book builds it completely before swapping it in, so readers never
// observe a mix of two books. A Session is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	doc      *content.Document
	position int

	progress ProgressStore
	library  Library
	opts     content.Options
	log      *slog.Logger
}

// NewSession returns a Session. progress and library may be nil.
func NewSession(progress ProgressStore, library Library, opts content.Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		progress: progress,
		library:  library,
		opts:     opts,
		log:      log,
	}
}

// Open loads the book at path, restores its saved position and registers it
// in the library. On error the previously open book stays open.
func (s *Session) Open(ctx context.Context, path string) (content.Chapter, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	doc, err := content.Open(ctx, abs, s.opts)
	if err != nil {
		return content.Chapter{}, err
	}

	position := 0
	if s.progress != nil {
		if saved, ok := s.progress.GetProgress(abs); ok {
			if saved >= 0 && saved < doc.ChapterCount() {
				position = saved
			} else {
				s.log.Warn("saved position out of range, starting at the beginning",
					"path", abs, "position", saved, "chapters", doc.ChapterCount())
			}
		}
	}

	s.mu.Lock()
	s.doc = doc
	s.position = position
	s.mu.Unlock()

	if s.library != nil {
		info := doc.Info()
		if err := s.library.AddToLibrary(abs, info.Title, info.Author, position); err != nil {
			s.log.Warn("failed to add book to library", "path", abs, "error", err)
		}
	}
	s.saveProgress(abs, position)

	return doc.SpineChapter(position), nil
}

// Document returns the open document, or nil.
func (s *Session) Document() *content.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Position returns the current spine index.
func (s *Session) Position() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Current returns the chapter at the current position.
func (s *Session) Current() (content.Chapter, error) {
	s.mu.RLock()
	doc, position := s.doc, s.position
	s.mu.RUnlock()
	if doc == nil {
		return content.Chapter{}, ErrNoDocument
	}
	return doc.SpineChapter(position), nil
}

// Next moves to the following spine document.
func (s *Session) Next() (content.Chapter, error) {
	return s.move(func(cur int) int { return cur + 1 })
}

// Prev moves to the preceding spine document.
func (s *Session) Prev() (content.Chapter, error) {
	return s.move(func(cur int) int { return cur - 1 })
}

// GotoSpine moves to a spine index.
func (s *Session) GotoSpine(spineIndex int) (content.Chapter, error) {
	return s.move(func(int) int { return spineIndex })
}

// Goto resolves a navigation play-order. When it maps to a spine document
// the position moves there; otherwise the chapter is returned as resolved
// (possibly a placeholder) and the position is unchanged.
func (s *Session) Goto(playOrder int) (content.Chapter, error) {
	s.mu.Lock()
	doc := s.doc
	if doc == nil {
		s.mu.Unlock()
		return content.Chapter{}, ErrNoDocument
	}
	spineIndex, ok := doc.Index.SpineIndex(playOrder)
	if ok {
		s.position = spineIndex
	}
	s.mu.Unlock()

	if ok {
		s.saveProgress(doc.Path, spineIndex)
	}
	return doc.Chapter(playOrder), nil
}

func (s *Session) move(next func(int) int) (content.Chapter, error) {
	s.mu.Lock()
	doc := s.doc
	if doc == nil {
		s.mu.Unlock()
		return content.Chapter{}, ErrNoDocument
	}
	target := next(s.position)
	if target < 0 || target >= doc.ChapterCount() {
		s.mu.Unlock()
		return content.Chapter{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, target, doc.ChapterCount())
	}
	s.position = target
	s.mu.Unlock()

	s.saveProgress(doc.Path, target)
	return doc.SpineChapter(target), nil
}

func (s *Session) saveProgress(path string, position int) {
	if s.progress == nil {
		return
	}
	if err := s.progress.UpdateProgress(path, position); err != nil {
		s.log.Warn("failed to save reading progress", "path", path, "error", err)
	}
}
