package library

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances one minute per call.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return Open(dir, Options{Now: clock.now}), dir
}

func TestStore_EmptyState(t *testing.T) {
	s, dir := newTestStore(t)

	_, ok := s.GetProgress("/books/a.epub")
	assert.False(t, ok)
	assert.Empty(t, s.Library())

	_, _, err := s.LastBook()
	assert.ErrorIs(t, err, ErrNoState)

	_, err = os.Stat(filepath.Join(dir, StateFile))
	assert.True(t, os.IsNotExist(err), "opening must not create the state file")
}

func TestStore_UpdateProgress(t *testing.T) {
	s, dir := newTestStore(t)

	require.NoError(t, s.AddToLibrary("/books/a.epub", "A", "Author A", 0))
	require.NoError(t, s.UpdateProgress("/books/a.epub", 4))

	pos, ok := s.GetProgress("/books/a.epub")
	require.True(t, ok)
	assert.Equal(t, 4, pos)

	path, pos, err := s.LastBook()
	require.NoError(t, err)
	assert.Equal(t, "/books/a.epub", path)
	assert.Equal(t, 4, pos)

	books := s.Library()
	require.Len(t, books, 1)
	assert.Equal(t, 4, books[0].ChapterIndex)

	reopened := Open(dir, Options{})
	pos, ok = reopened.GetProgress("/books/a.epub")
	require.True(t, ok)
	assert.Equal(t, 4, pos)
	reloaded := reopened.Library()
	require.Len(t, reloaded, 1)
	assert.Equal(t, books[0].Title, reloaded[0].Title)
	assert.True(t, books[0].LastRead.Equal(reloaded[0].LastRead))
}

func TestStore_ProgressWithoutLibraryEntry(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdateProgress("/books/loose.epub", 2))

	pos, ok := s.GetProgress("/books/loose.epub")
	require.True(t, ok)
	assert.Equal(t, 2, pos)
	assert.Empty(t, s.Library())
}

func TestStore_AddToLibraryIgnoresDuplicates(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddToLibrary("/books/a.epub", "A", "X", 0))
	require.NoError(t, s.AddToLibrary("/books/a.epub", "A again", "Y", 7))

	books := s.Library()
	require.Len(t, books, 1)
	assert.Equal(t, "A", books[0].Title)
	assert.Equal(t, 0, books[0].ChapterIndex)
}

func TestStore_LibraryNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddToLibrary("/books/a.epub", "A", "", 0))
	require.NoError(t, s.AddToLibrary("/books/b.epub", "B", "", 0))
	require.NoError(t, s.AddToLibrary("/books/c.epub", "C", "", 0))
	require.NoError(t, s.UpdateProgress("/books/a.epub", 1))

	var titles []string
	for _, b := range s.Library() {
		titles = append(titles, b.Title)
	}
	assert.Equal(t, []string{"A", "C", "B"}, titles)
}

func TestStore_RemoveFromLibrary(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.AddToLibrary("/books/a.epub", "A", "", 0))
	require.NoError(t, s.UpdateProgress("/books/a.epub", 3))
	require.NoError(t, s.RemoveFromLibrary("/books/a.epub"))

	assert.Empty(t, s.Library())
	_, ok := s.GetProgress("/books/a.epub")
	assert.False(t, ok)
	_, _, err := s.LastBook()
	assert.ErrorIs(t, err, ErrNoState)

	assert.ErrorIs(t, s.RemoveFromLibrary("/books/a.epub"), ErrNoState)
}

func TestStore_FileFormat(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, s.AddToLibrary("/books/a.epub", "A", "Author", 0))
	require.NoError(t, s.UpdateProgress("/books/a.epub", 5))

	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "last_book")
	assert.Contains(t, raw, "reading_progress")
	assert.Contains(t, raw, "library")

	var progress map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw["reading_progress"], &progress))
	assert.Equal(t, float64(5), progress["/books/a.epub"]["chapter_index"])
	assert.Contains(t, progress["/books/a.epub"], "last_read")
}

func TestStore_CorruptFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFile), []byte("{not json"), 0o644))

	s := Open(dir, Options{})
	assert.Empty(t, s.Library())

	require.NoError(t, s.UpdateProgress("/books/a.epub", 1))
	pos, ok := Open(dir, Options{}).GetProgress("/books/a.epub")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
}
