package content

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/fastepub/internal/epub"
)

// RewriteImages replaces the <img src> and SVG <image href> references in
// markup with data: URIs from cache. References that are already data: URIs
// are left alone. Unmatched references follow opts.MissingImage.
func RewriteImages(markup string, cache *ImageCache, opts Options) string {
	doc, err := parseMarkup(markup)
	if err != nil {
		opts.logger().Warn("failed to parse markup, leaving images untouched", "error", err)
		return markup
	}
	rewriteImages(doc, "", cache, opts)
	out, err := renderMarkup(doc, markup)
	if err != nil {
		opts.logger().Warn("failed to render markup, leaving images untouched", "error", err)
		return markup
	}
	return out
}

// imageRefAttrs lists the selectors and attributes that hold image references.
// Inside <svg>, xlink:href is parsed into the "href" key with the "xlink"
// namespace, so one attribute name covers both spellings.
var imageRefAttrs = []struct {
	selector string
	attr     string
}{
	{"img[src]", "src"},
	{"image[href]", "href"},
}

type rewriteStats struct {
	inlined  int
	missing  int
	replaced int
}

func rewriteImages(doc *goquery.Document, base string, cache *ImageCache, opts Options) rewriteStats {
	log := opts.logger()
	var stats rewriteStats

	for _, ra := range imageRefAttrs {
		doc.Find(ra.selector).Each(func(_ int, s *goquery.Selection) {
			ref, _ := s.Attr(ra.attr)
			ref = strings.TrimSpace(ref)
			if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
				return
			}
			if strings.Contains(ref, "://") {
				log.Debug("leaving remote image reference", "src", ref)
				return
			}

			if uri, ok := cache.Lookup(base, ref); ok {
				s.SetAttr(ra.attr, uri)
				if opts.LazyImages && goquery.NodeName(s) == "img" {
					if _, has := s.Attr("loading"); !has {
						s.SetAttr("loading", "lazy")
					}
				}
				stats.inlined++
				return
			}

			stats.missing++
			switch opts.MissingImage {
			case MissingImagePlaceholder:
				s.SetAttr(ra.attr, PlaceholderImage)
				stats.replaced++
				log.Debug("image not found, using placeholder", "src", ref, "document", base)
			default:
				log.Warn("image not found", "src", ref, "document", base)
			}
		})
	}
	return stats
}

// annotateLinks marks links to other spine documents with data-spine-index,
// and data-play-order when the target has a navigation entry.
func annotateLinks(doc *goquery.Document, base string, norm epub.Normalizer, idx *ChapterIndex) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := url.Parse(strings.TrimSpace(href))
		if err != nil || u.IsAbs() || u.Path == "" {
			return
		}

		target, _ := epub.SplitFragment(epub.ResolveRelative(base, u.EscapedPath()))
		spineIndex, ok := idx.SpineIndexForPath(norm, target)
		if !ok {
			return
		}
		s.SetAttr("data-spine-index", strconv.Itoa(spineIndex))
		if playOrder, ok := idx.PlayOrder(spineIndex); ok {
			s.SetAttr("data-play-order", strconv.Itoa(playOrder))
		}
	})
}

// sanitize removes scripts, inline event handlers and javascript: URLs.
func sanitize(doc *goquery.Document) {
	doc.Find("script").Remove()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		var toRemove []string
		for _, attr := range node.Attr {
			key := strings.ToLower(attr.Key)
			switch {
			case strings.HasPrefix(key, "on"):
				toRemove = append(toRemove, attr.Key)
			case key == "href" || key == "src":
				if strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "javascript:") {
					toRemove = append(toRemove, attr.Key)
				}
			}
		}
		for _, key := range toRemove {
			s.RemoveAttr(key)
		}
	})
}

// documentTitle returns the <title> text, or the first heading's.
func documentTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1, h2, h3").First().Text())
}

func parseMarkup(markup string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(stripXMLDeclaration(markup)))
}

// renderMarkup serializes doc in the shape of the original markup: a whole
// document when it had an <html> element, otherwise the body's children.
func renderMarkup(doc *goquery.Document, original string) (string, error) {
	if strings.Contains(strings.ToLower(original), "<html") {
		return doc.Html()
	}
	return doc.Find("body").Html()
}

// stripXMLDeclaration drops a leading <?xml ...?>, which the HTML parser
// would otherwise keep as a bogus comment.
func stripXMLDeclaration(markup string) string {
	trimmed := strings.TrimLeft(markup, " \t\r\n")
	if !strings.HasPrefix(trimmed, "<?xml") {
		return markup
	}
	if end := strings.Index(trimmed, "?>"); end >= 0 {
		return trimmed[end+2:]
	}
	return markup
}

func logStats(log *slog.Logger, p string, stats rewriteStats) {
	if stats.inlined == 0 && stats.missing == 0 {
		return
	}
	log.Debug("rewrote image references",
		"path", p,
		"inlined", stats.inlined,
		"missing", stats.missing,
		"placeholders", stats.replaced)
}
