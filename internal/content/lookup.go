package content

import (
	"net/url"
	"sort"
	"strings"

	"github.com/yuanying/fastepub/internal/epub"
)

// pathTable maps the spellings of resource paths to resource ids. Each table
// keeps the first resource that claimed a key, in manifest order.
type pathTable struct {
	norm       epub.Normalizer
	byPath     map[string]string // cleaned archive path
	byStripped map[string]string // content root removed
	byBase     map[string]string // bare file name
}

func newPathTable(snap *epub.Snapshot, keep func(epub.Resource) bool) *pathTable {
	t := &pathTable{
		norm:       snap.Normalizer(),
		byPath:     make(map[string]string),
		byStripped: make(map[string]string),
		byBase:     make(map[string]string),
	}
	for _, id := range snap.ResourceOrder {
		r := snap.Resources[id]
		if keep != nil && !keep(r) {
			continue
		}
		claim(t.byPath, t.norm.Clean(r.Path), id)
		claim(t.byStripped, t.norm.Normalize(r.Path), id)
		claim(t.byBase, t.norm.Base(r.Path), id)
	}
	return t
}

func claim(m map[string]string, key, value string) {
	if key == "" {
		return
	}
	if _, taken := m[key]; !taken {
		m[key] = value
	}
}

// resourceStrategy is one step of the resource fallback chain.
type resourceStrategy func(t *pathTable, ref string) (string, bool)

// resourceStrategies are tried in order: exact path, root-stripped path,
// bare file name.
var resourceStrategies = []resourceStrategy{
	func(t *pathTable, ref string) (string, bool) {
		id, ok := t.byPath[t.norm.Clean(ref)]
		return id, ok
	},
	func(t *pathTable, ref string) (string, bool) {
		id, ok := t.byStripped[t.norm.Normalize(ref)]
		return id, ok
	},
	func(t *pathTable, ref string) (string, bool) {
		id, ok := t.byBase[t.norm.Base(ref)]
		return id, ok
	},
}

// lookup returns the id of the resource ref names.
func (t *pathTable) lookup(ref string) (string, bool) {
	if t.norm.Clean(ref) == "" {
		return "", false
	}
	for _, strategy := range resourceStrategies {
		if id, ok := strategy(t, ref); ok {
			return id, true
		}
	}
	return "", false
}

// imageStrategy produces the cache keys one step of the image fallback chain
// tries for a reference. base is the archive path of the referencing document
// and may be empty.
type imageStrategy func(c *ImageCache, base, ref string) []string

// imageStrategies are tried in order; the first key present in the cache wins.
var imageStrategies = []imageStrategy{
	// The reference resolved against its document, then with leading
	// "../" and "./" removed, each also percent-decoded.
	func(c *ImageCache, base, ref string) []string {
		var keys []string
		for _, v := range withUnescaped(ref) {
			if base != "" {
				keys = append(keys, c.norm.Clean(epub.ResolveRelative(base, v)))
			}
			keys = append(keys, c.norm.Normalize(stripDotSegments(v)))
		}
		return keys
	},
	// The content root directory prefixed to the reference.
	func(c *ImageCache, _, ref string) []string {
		var keys []string
		for _, v := range withUnescaped(ref) {
			keys = append(keys, c.norm.Rooted(stripDotSegments(v)))
		}
		return keys
	},
	// The bare file name.
	func(c *ImageCache, _, ref string) []string {
		var keys []string
		for _, v := range withUnescaped(ref) {
			keys = append(keys, c.norm.Base(v))
		}
		return keys
	},
	// The longest cache key that the reference ends with.
	func(c *ImageCache, _, ref string) []string {
		var keys []string
		for _, v := range withUnescaped(ref) {
			if k := c.longestSuffixKey(c.norm.Normalize(stripDotSegments(v))); k != "" {
				keys = append(keys, k)
			}
		}
		return keys
	},
}

// stripDotSegments removes every leading "../" and "./".
func stripDotSegments(ref string) string {
	ref = strings.ReplaceAll(ref, `\`, "/")
	for {
		switch {
		case strings.HasPrefix(ref, "../"):
			ref = ref[3:]
		case strings.HasPrefix(ref, "./"):
			ref = ref[2:]
		default:
			return ref
		}
	}
}

// withUnescaped returns ref, followed by its percent-decoded form when that
// differs.
func withUnescaped(ref string) []string {
	if !strings.Contains(ref, "%") {
		return []string{ref}
	}
	decoded, err := url.PathUnescape(ref)
	if err != nil || decoded == ref {
		return []string{ref}
	}
	return []string{ref, decoded}
}

// sortedByLength orders keys longest first, then lexically, so suffix scans
// are deterministic.
func sortedByLength(keys []string) []string {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
