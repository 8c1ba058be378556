package epub

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

// Resource is a manifest entry.
type Resource struct {
	ID         string
	Path       string // archive path
	MediaType  string
	Properties []string
}

// Snapshot is the fully materialized content of a package. It owns every
// resource's bytes and holds no file handle; it is never modified after Parse
// returns, so it may be shared between goroutines.
type Snapshot struct {
	Version string
	OPFPath string

	// ContentRoot is the directory of the package document, or
	// DefaultContentRoot when the package sits at the archive root.
	ContentRoot string

	// Spine lists resource ids in reading order; every id is a key of
	// Resources and appears once.
	Spine       []string
	SpineLinear []bool

	Resources     map[string]Resource
	ResourceOrder []string
	ResourceBytes map[string][]byte

	Navigation      []NavPoint
	NavigationTitle string

	// Metadata maps a metadata name ("title", "creator", ...) to its values
	// in document order; the first value is canonical.
	Metadata map[string][]string
	Creators []Creator

	UniqueIdentifier string
	CoverResourceID  string

	Guide []GuideReference
}

// Options controls parsing.
type Options struct {
	Logger *slog.Logger
	// Strict rejects packages with a missing or compressed mimetype entry.
	Strict bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Parse opens the EPUB at filePath and materializes it into a Snapshot. The
// archive is closed before Parse returns.
func Parse(filePath string, opts Options) (*Snapshot, error) {
	reader, err := Open(filePath, opts.Strict)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return build(reader, opts)
}

// ParseArchive is Parse for an archive that is already in memory or open.
func ParseArchive(r io.ReaderAt, size int64, opts Options) (*Snapshot, error) {
	reader, err := NewReader(r, size, opts.Strict)
	if err != nil {
		return nil, err
	}
	return build(reader, opts)
}

func build(reader *EPUBReader, opts Options) (*Snapshot, error) {
	log := opts.logger()

	opfData, err := reader.ReadFile(reader.OPFPath())
	if err != nil {
		if errors.Is(err, ErrIO) {
			return nil, fmt.Errorf("failed to read OPF: %w", err)
		}
		return nil, fmt.Errorf("%w: failed to read OPF: %w", ErrMalformed, err)
	}

	opfDir := path.Dir(reader.OPFPath())
	opf, err := ParseOPF(opfData, opfDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	root := opfDir
	if root == "." || root == "" {
		root = DefaultContentRoot
	}

	snap := &Snapshot{
		Version:          opf.Version,
		OPFPath:          reader.OPFPath(),
		ContentRoot:      root,
		Resources:        make(map[string]Resource, len(opf.Manifest)),
		ResourceBytes:    make(map[string][]byte, len(opf.Manifest)),
		Metadata:         opf.Metadata.Values,
		Creators:         opf.Metadata.Creators,
		UniqueIdentifier: opf.Metadata.Identifier,
		Guide:            opf.Guide,
	}

	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if strings.Contains(item.Href, "://") {
			log.Debug("skipping remote resource", "id", id, "href", item.Href)
			continue
		}
		data, err := reader.ReadFile(item.Href)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn("manifest item missing from archive, dropping", "id", id, "href", item.Href)
				continue
			}
			return nil, err
		}
		snap.Resources[id] = Resource{
			ID:         id,
			Path:       item.Href,
			MediaType:  item.MediaType,
			Properties: item.Properties,
		}
		snap.ResourceOrder = append(snap.ResourceOrder, id)
		snap.ResourceBytes[id] = data
	}

	seen := make(map[string]bool, len(opf.Spine))
	for _, ref := range opf.Spine {
		if _, ok := snap.Resources[ref.IDRef]; !ok {
			log.Warn("spine item not found in manifest, skipping", "idref", ref.IDRef)
			continue
		}
		if seen[ref.IDRef] {
			log.Warn("spine item repeated, skipping", "idref", ref.IDRef)
			continue
		}
		seen[ref.IDRef] = true
		snap.Spine = append(snap.Spine, ref.IDRef)
		snap.SpineLinear = append(snap.SpineLinear, ref.Linear)
	}

	if opf.Metadata.CoverID != "" {
		if _, ok := snap.Resources[opf.Metadata.CoverID]; ok {
			snap.CoverResourceID = opf.Metadata.CoverID
		}
	}
	if cover := snap.DetectCover(); cover != nil {
		snap.CoverResourceID = cover.ManifestID
	}

	nav, err := snap.loadNavigation(opf)
	if err != nil {
		log.Warn("failed to load table of contents", "error", err)
	} else if nav != nil {
		snap.Navigation = nav.NavPoints
		snap.NavigationTitle = nav.DocTitle
	}

	log.Debug("parsed package",
		"opf", snap.OPFPath,
		"version", snap.Version,
		"resources", len(snap.Resources),
		"spine", len(snap.Spine))

	return snap, nil
}

// loadNavigation prefers the EPUB 3 nav document for version 3 packages and
// falls back to the NCX. A package with neither has no navigation.
func (s *Snapshot) loadNavigation(opf *OPF) (*NCX, error) {
	var navErr error
	if strings.HasPrefix(opf.Version, "3") && opf.NavPath != "" {
		if data, ok := s.bytesAt(opf.NavPath); ok {
			nav, err := parseNavDocument(data, opf.NavPath)
			if err == nil && len(nav.NavPoints) > 0 {
				return nav, nil
			}
			navErr = err
		}
	}

	if opf.NCXPath != "" {
		if data, ok := s.bytesAt(opf.NCXPath); ok {
			return parseNCX(data, opf.NCXPath)
		}
	}

	// EPUB 2 declared version but only a nav document shipped.
	if opf.NavPath != "" && navErr == nil {
		if data, ok := s.bytesAt(opf.NavPath); ok {
			return parseNavDocument(data, opf.NavPath)
		}
	}
	return nil, navErr
}

func (s *Snapshot) bytesAt(p string) ([]byte, bool) {
	for _, id := range s.ResourceOrder {
		if s.Resources[id].Path == p {
			return s.ResourceBytes[id], true
		}
	}
	return nil, false
}

// Normalizer returns the path normalizer for this package's content root.
func (s *Snapshot) Normalizer() Normalizer {
	return NewNormalizer(s.ContentRoot)
}

// ChapterCount is the number of spine entries.
func (s *Snapshot) ChapterCount() int {
	return len(s.Spine)
}

// SpineResource returns the resource at spine index i.
func (s *Snapshot) SpineResource(i int) (Resource, bool) {
	if i < 0 || i >= len(s.Spine) {
		return Resource{}, false
	}
	r, ok := s.Resources[s.Spine[i]]
	return r, ok
}

// MetadataValue returns the canonical value for key, or "".
func (s *Snapshot) MetadataValue(key string) string {
	if v := s.Metadata[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Title returns the canonical title.
func (s *Snapshot) Title() string {
	return s.MetadataValue("title")
}

// Author returns the first creator, or "".
func (s *Snapshot) Author() string {
	return s.MetadataValue("creator")
}

// Description returns the canonical description.
func (s *Snapshot) Description() string {
	return s.MetadataValue("description")
}
