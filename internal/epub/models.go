package epub

// OPF represents the parsed Open Package Format document
type OPF struct {
	Version       string
	UniqueID      string
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in declaration order
	Spine         []SpineItem
	Guide         []GuideReference
	NCXPath       string
	NavPath       string
}

// Metadata represents the metadata section of the OPF.
// Values holds every metadata element keyed by its local name ("title",
// "creator", ...) plus EPUB 2 <meta name content> pairs, in document order.
type Metadata struct {
	Values     map[string][]string
	Creators   []Creator
	Identifier string
	CoverID    string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// First returns the canonical (first) value for key, or "".
func (m Metadata) First(key string) string {
	if v := m.Values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
	Lang string // xml:lang attribute
}

// ManifestItem represents an item in the manifest
type ManifestItem struct {
	ID         string
	Href       string // archive path, already joined with the OPF directory
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item declares prop in its properties.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range m.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}

// GuideReference is an EPUB 2 <guide><reference>.
type GuideReference struct {
	Type  string
	Title string
	Href  string
}
