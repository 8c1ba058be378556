package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
)

// EPUBReader provides access to EPUB archive contents. It is only used while a
// Snapshot is being built; nothing keeps it open afterwards.
type EPUBReader struct {
	zipReader *zip.Reader
	closer    io.Closer
	files     map[string]*zip.File
	folded    map[string]*zip.File
	opfPath   string
	strict    bool
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Open opens an EPUB file and validates its structure.
// Errors match ErrNotFound or ErrMalformed.
func Open(filePath string, strict bool) (*EPUBReader, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open EPUB: %w", ErrMalformed, err)
	}

	reader, err := newReader(&zr.Reader, zr, strict)
	if err != nil {
		zr.Close()
		return nil, err
	}
	return reader, nil
}

// NewReader reads an EPUB archive from r. The caller keeps ownership of r.
func NewReader(r io.ReaderAt, size int64, strict bool) (*EPUBReader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open EPUB: %w", ErrMalformed, err)
	}
	return newReader(zr, nil, strict)
}

func newReader(zr *zip.Reader, closer io.Closer, strict bool) (*EPUBReader, error) {
	reader := &EPUBReader{
		zipReader: zr,
		closer:    closer,
		files:     make(map[string]*zip.File),
		folded:    make(map[string]*zip.File),
		strict:    strict,
	}

	// Build file map with normalized paths
	for _, f := range zr.File {
		name := archivePath(f.Name)
		reader.files[name] = f
		if _, dup := reader.folded[strings.ToLower(name)]; !dup {
			reader.folded[strings.ToLower(name)] = f
		}
	}

	if err := reader.validateMimetype(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := reader.parseContainer(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return reader, nil
}

// Close closes the EPUB reader
func (r *EPUBReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// OPFPath returns the path to the OPF file
func (r *EPUBReader) OPFPath() string {
	return r.opfPath
}

// Files returns a map of all files in the EPUB
func (r *EPUBReader) Files() map[string]*zip.File {
	return r.files
}

// Has reports whether the archive contains path, using the same lookup rules
// as ReadFile.
func (r *EPUBReader) Has(p string) bool {
	return r.lookup(p) != nil
}

// ReadFile reads the contents of a file from the EPUB.
// A missing entry is reported with fs.ErrNotExist; a failing read with ErrIO.
func (r *EPUBReader) ReadFile(p string) ([]byte, error) {
	f := r.lookup(p)
	if f == nil {
		return nil, fmt.Errorf("file not found: %s: %w", archivePath(p), fs.ErrNotExist)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file %s: %w", ErrIO, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read file %s: %w", ErrIO, f.Name, err)
	}
	return data, nil
}

// lookup finds an archive entry by exact path, then by its cleaned form, then
// percent-decoded, then case-insensitively. Packages built on
// case-insensitive file systems often disagree with their own manifest about
// letter case.
func (r *EPUBReader) lookup(p string) *zip.File {
	name := archivePath(p)
	if f, ok := r.files[name]; ok {
		return f
	}
	cleaned := path.Clean(name)
	if f, ok := r.files[cleaned]; ok {
		return f
	}
	if decoded := unescapePath(cleaned); decoded != cleaned {
		if f, ok := r.files[decoded]; ok {
			return f
		}
	}
	return r.folded[strings.ToLower(cleaned)]
}

// validateMimetype checks that the mimetype file exists and is valid.
// Outside strict mode only a mimetype with the wrong content is rejected.
func (r *EPUBReader) validateMimetype() error {
	f, ok := r.files["mimetype"]
	if !ok {
		if r.strict {
			return ErrMimetypeNotFound
		}
		return nil
	}

	if r.strict && f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	content, err := r.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}

	if strings.TrimSpace(string(content)) != "application/epub+zip" {
		return ErrInvalidMimetype
	}

	return nil
}

// parseContainer parses container.xml to extract OPF path
func (r *EPUBReader) parseContainer() error {
	content, err := r.ReadFile("META-INF/container.xml")
	if err != nil {
		return ErrContainerNotFound
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("failed to parse container.xml: %w", err)
	}

	// Find the OPF file path
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			r.opfPath = archivePath(rf.FullPath)
			return nil
		}
	}

	// If no media-type match, use the first one
	if len(c.Rootfiles.Rootfile) > 0 {
		r.opfPath = archivePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return ErrOPFPathNotFound
}

// archivePath normalizes an archive entry name: forward slashes, no leading
// "./" or "/".
func archivePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			return p
		}
	}
}
