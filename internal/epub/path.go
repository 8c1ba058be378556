package epub

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultContentRoot is the content directory most packages keep their
// resources under. It is used when the package document sits at the archive
// root and therefore names no directory of its own.
const DefaultContentRoot = "OEBPS"

// Normalizer turns the many spellings of a resource path into comparison
// keys. Its output is never written back into markup.
type Normalizer struct {
	// Root is the content-root directory stripped by Normalize, without a
	// trailing slash.
	Root string
}

// NewNormalizer returns a Normalizer for root, falling back to
// DefaultContentRoot when root is empty or ".".
func NewNormalizer(root string) Normalizer {
	root = strings.Trim(strings.ReplaceAll(root, `\`, "/"), "/")
	if root == "" || root == "." {
		root = DefaultContentRoot
	}
	return Normalizer{Root: root}
}

// Clean unifies separators, drops the fragment and any leading "/" or "./",
// and puts the result in NFC form. It is idempotent.
func (n Normalizer) Clean(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p, _ = SplitFragment(p)
	p = norm.NFC.String(p)
	return archivePath(p)
}

// Normalize is Clean followed by stripping the content-root prefix. It is
// idempotent: Normalize(Normalize(p)) == Normalize(p).
func (n Normalizer) Normalize(p string) string {
	p = n.Clean(p)
	prefix := n.Root + "/"
	for n.Root != "" && strings.HasPrefix(p, prefix) {
		p = archivePath(p[len(prefix):])
	}
	return p
}

// Rooted returns p prefixed with the content root, unless it already is.
func (n Normalizer) Rooted(p string) string {
	p = n.Normalize(p)
	if p == "" {
		return ""
	}
	return n.Root + "/" + p
}

// Base returns the bare file name of the cleaned path.
func (n Normalizer) Base(p string) string {
	p = n.Clean(p)
	if p == "" {
		return ""
	}
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// SplitFragment splits a reference into the path and fragment identifier
// (without '#').
func SplitFragment(src string) (p, fragment string) {
	if src == "" {
		return "", ""
	}
	parts := strings.SplitN(src, "#", 2)
	p = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return p, fragment
}

// ResolveRelative resolves ref against the directory of the document at
// basePath, keeping any fragment. Absolute URLs and fragment-only references
// are returned unchanged.
func ResolveRelative(basePath, ref string) string {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	if ref == "" || strings.HasPrefix(ref, "#") || strings.Contains(ref, "://") {
		return ref
	}
	p, fragment := SplitFragment(ref)
	p = unescapePath(p)
	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(archivePath(basePath)), p)
	}
	p = archivePath(path.Clean(p))
	if strings.HasPrefix(p, "../") || p == ".." {
		// Escapes the archive root; keep what remains addressable.
		for strings.HasPrefix(p, "../") {
			p = p[3:]
		}
		if p == ".." {
			p = ""
		}
	}
	if fragment != "" {
		return p + "#" + fragment
	}
	return p
}

// unescapePath percent-decodes an href path. A malformed escape leaves p as
// written.
func unescapePath(p string) string {
	if !strings.Contains(p, "%") {
		return p
	}
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}
