package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/yuanying/fastepub/internal/epub"
)

// Status describes how a chapter was resolved.
type Status int

const (
	StatusOK Status = iota
	// StatusNotFound means the play-order or spine index names no chapter.
	StatusNotFound
	// StatusUnreadable means the chapter exists but its bytes could not be
	// located or decoded.
	StatusUnreadable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not-found"
	case StatusUnreadable:
		return "unreadable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Chapter is display-ready chapter markup plus where it came from. PlayOrder
// is 0 and SpineIndex is -1 when the chapter has no such position.
type Chapter struct {
	ID         string
	Title      string
	Content    string
	Path       string
	PlayOrder  int
	SpineIndex int
	Resolved   bool
	Status     Status
}

const (
	notFoundMarkup   = `<div class="chapter-placeholder" data-status="not-found"><p>Chapter not found.</p></div>`
	unreadableMarkup = `<div class="chapter-placeholder" data-status="unreadable"><p>This chapter could not be read.</p></div>`
)

func placeholder(status Status, playOrder, spineIndex int, p string) Chapter {
	c := Chapter{
		Path:       p,
		PlayOrder:  playOrder,
		SpineIndex: spineIndex,
		Resolved:   true,
		Status:     status,
	}
	if status == StatusNotFound {
		c.Content = notFoundMarkup
	} else {
		c.Content = unreadableMarkup
	}
	return c
}

// ResolveChapter returns the chapter a navigation play-order points at. It
// never fails: an unknown play-order or unreadable document yields a
// placeholder chapter whose Status says why.
func ResolveChapter(snap *epub.Snapshot, idx *ChapterIndex, cache *ImageCache, playOrder int, opts Options) Chapter {
	target, ok := idx.PlayOrderToPath[playOrder]
	spineIndex, inSpine := idx.SpineIndex(playOrder)
	if !inSpine {
		spineIndex = -1
	}
	if !ok {
		opts.logger().Debug("play-order not found", "play_order", playOrder)
		return placeholder(StatusNotFound, playOrder, -1, "")
	}

	if inSpine {
		r, _ := snap.SpineResource(spineIndex)
		return render(snap, idx, cache, r.ID, playOrder, spineIndex, opts)
	}

	id, ok := idx.resources.lookup(target)
	if !ok {
		opts.logger().Warn("chapter resource not found", "play_order", playOrder, "path", target)
		return placeholder(StatusUnreadable, playOrder, spineIndex, target)
	}
	return render(snap, idx, cache, id, playOrder, spineIndex, opts)
}

// ResolveSpine returns the chapter at a spine index.
func ResolveSpine(snap *epub.Snapshot, idx *ChapterIndex, cache *ImageCache, spineIndex int, opts Options) Chapter {
	r, ok := snap.SpineResource(spineIndex)
	if !ok {
		opts.logger().Debug("spine index out of range", "spine_index", spineIndex, "chapters", snap.ChapterCount())
		return placeholder(StatusNotFound, 0, -1, "")
	}
	playOrder, _ := idx.PlayOrder(spineIndex)
	return render(snap, idx, cache, r.ID, playOrder, spineIndex, opts)
}

func render(snap *epub.Snapshot, idx *ChapterIndex, cache *ImageCache, id string, playOrder, spineIndex int, opts Options) Chapter {
	log := opts.logger()
	r := snap.Resources[id]

	text, err := decodeText(snap.ResourceBytes[id])
	if err != nil {
		log.Warn("chapter could not be decoded", "path", r.Path, "error", err)
		return placeholder(StatusUnreadable, playOrder, spineIndex, r.Path)
	}

	doc, err := parseMarkup(text)
	if err != nil {
		log.Warn("chapter could not be parsed", "path", r.Path, "error", err)
		return placeholder(StatusUnreadable, playOrder, spineIndex, r.Path)
	}

	stats := rewriteImages(doc, r.Path, cache, opts)
	logStats(log, r.Path, stats)
	annotateLinks(doc, r.Path, snap.Normalizer(), idx)
	sanitize(doc)

	out, err := renderMarkup(doc, text)
	if err != nil {
		log.Warn("chapter could not be rendered", "path", r.Path, "error", err)
		return placeholder(StatusUnreadable, playOrder, spineIndex, r.Path)
	}

	log.Debug("resolved chapter", "id", id, "path", r.Path, "play_order", playOrder, "spine_index", spineIndex)
	return Chapter{
		ID:         id,
		Title:      documentTitle(doc),
		Content:    out,
		Path:       r.Path,
		PlayOrder:  playOrder,
		SpineIndex: spineIndex,
		Resolved:   true,
		Status:     StatusOK,
	}
}

var errInvalidUTF8 = errors.New("invalid UTF-8")

var (
	xmlEncodingRe = regexp.MustCompile(`^\s*<\?xml[^>]*\bencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)
	metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([A-Za-z0-9._:-]+)`)
)

// decodeText returns data as a UTF-8 string. A UTF-8 BOM is dropped. Bytes
// that are not valid UTF-8 are transcoded only when the document carries a
// UTF-16 BOM or declares another charset; otherwise decoding fails.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}

	label := declaredCharset(data)
	if label == "" || isUTF8Label(label) {
		return "", errInvalidUTF8
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", label, err)
	}
	return strings.TrimPrefix(string(decoded), "\ufeff"), nil
}

func declaredCharset(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xfe, 0xff}):
		return "utf-16be"
	case bytes.HasPrefix(data, []byte{0xff, 0xfe}):
		return "utf-16le"
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if m := xmlEncodingRe.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return string(m[1])
	}
	return ""
}

func isUTF8Label(label string) bool {
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "unicode-1-1-utf-8":
		return true
	}
	return false
}
