package content

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/fastepub/internal/epub"
)

// Document is an open book: its snapshot plus the lookup tables built from
// it. A Document is read-only and safe for concurrent use.
type Document struct {
	Path     string
	Snapshot *epub.Snapshot
	Index    *ChapterIndex
	Images   *ImageCache

	opts Options
}

// Info summarizes a document.
type Info struct {
	Title        string
	Author       string
	Description  string
	Identifier   string
	Language     string
	Version      string
	ChapterCount int
	TOCEntries   int
	Images       int
	CoverPath    string
}

// Open parses the book at path and builds its index and image cache
// concurrently. Errors match epub.ErrNotFound or epub.ErrMalformed; read
// failures additionally match epub.ErrIO, and an open aborted through ctx
// additionally matches ctx.Err().
func Open(ctx context.Context, path string, opts Options) (*Document, error) {
	log := opts.logger()

	snap, err := epub.Parse(path, epub.Options{Logger: log, Strict: opts.Strict})
	if err != nil {
		if errors.Is(err, epub.ErrIO) && !errors.Is(err, epub.ErrMalformed) {
			err = fmt.Errorf("%w: %w", epub.ErrMalformed, err)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	doc := &Document{Path: path, Snapshot: snap, opts: opts}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		doc.Index = BuildIndex(snap)
		return nil
	})
	g.Go(func() error {
		cache, err := buildImageCache(gctx, snap, opts)
		if err != nil {
			return err
		}
		doc.Images = cache
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", epub.ErrMalformed, path, err)
	}

	log.Info("opened book",
		"path", path,
		"title", snap.Title(),
		"chapters", snap.ChapterCount(),
		"toc_entries", len(doc.Index.Entries),
		"image_keys", doc.Images.Len())
	return doc, nil
}

// Chapter resolves a navigation play-order.
func (d *Document) Chapter(playOrder int) Chapter {
	return ResolveChapter(d.Snapshot, d.Index, d.Images, playOrder, d.opts)
}

// SpineChapter resolves a spine index.
func (d *Document) SpineChapter(spineIndex int) Chapter {
	return ResolveSpine(d.Snapshot, d.Index, d.Images, spineIndex, d.opts)
}

// ChapterCount is the number of spine documents.
func (d *Document) ChapterCount() int {
	return d.Snapshot.ChapterCount()
}

// TOC returns the flattened navigation.
func (d *Document) TOC() []FlatEntry {
	return d.Index.Entries
}

// Info returns the document summary.
func (d *Document) Info() Info {
	s := d.Snapshot
	info := Info{
		Title:        s.Title(),
		Author:       s.Author(),
		Description:  s.Description(),
		Identifier:   s.UniqueIdentifier,
		Language:     s.MetadataValue("language"),
		Version:      s.Version,
		ChapterCount: s.ChapterCount(),
		TOCEntries:   len(d.Index.Entries),
		Images:       d.Images.Len(),
	}
	if r, ok := s.Resources[s.CoverResourceID]; ok {
		info.CoverPath = r.Path
	}
	return info
}

// Cover returns the cover image bytes and media type.
func (d *Document) Cover() ([]byte, string, bool) {
	r, ok := d.Snapshot.Resources[d.Snapshot.CoverResourceID]
	if !ok {
		return nil, "", false
	}
	return d.Snapshot.ResourceBytes[r.ID], epub.ImageMediaType(r.Path, r.MediaType), true
}
