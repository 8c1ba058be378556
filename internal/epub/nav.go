package epub

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// parseNavDocument parses an EPUB 3 XHTML navigation document and returns the
// tree of the <nav epub:type="toc"> element. navPath is the archive path of
// the document, used to resolve relative hrefs.
//
// Nav documents carry no play order, so entries are numbered 1..N in
// pre-order.
func parseNavDocument(data []byte, navPath string) (*NCX, error) {
	doc, err := html.Parse(bytes.NewReader(stripBOM(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nav document: %w", err)
	}

	var toc *html.Node
	var findTOC func(*html.Node)
	findTOC = func(n *html.Node) {
		if toc != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "nav" && hasEpubType(n, "toc") {
			toc = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTOC(c)
		}
	}
	findTOC(doc)
	if toc == nil {
		return nil, fmt.Errorf("nav document has no toc nav")
	}

	ncx := &NCX{}
	if h := findFirstElement(toc, "h1", "h2", "h3"); h != nil {
		ncx.DocTitle = strings.TrimSpace(nodeText(h))
	}
	if ol := findFirstElement(toc, "ol"); ol != nil {
		position := 0
		ncx.NavPoints = parseNavList(ol, navPath, &position)
	}
	return ncx, nil
}

// parseNavList turns the <li> children of an <ol> into NavPoints.
func parseNavList(ol *html.Node, navPath string, position *int) []NavPoint {
	var points []NavPoint
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		*position++
		np := NavPoint{PlayOrder: *position}
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "a":
				if np.ContentPath == "" && np.Label == "" {
					np.ID = attr(c, "id")
					np.Label = strings.TrimSpace(nodeText(c))
					np.ContentPath, np.Fragment = SplitFragment(ResolveRelative(navPath, attr(c, "href")))
				}
			case "span":
				if np.Label == "" {
					np.Label = strings.TrimSpace(nodeText(c))
				}
			case "ol":
				np.Children = parseNavList(c, navPath, position)
			}
		}
		points = append(points, np)
	}
	return points
}

func hasEpubType(n *html.Node, typeName string) bool {
	for _, t := range strings.Fields(attr(n, "epub:type")) {
		if t == typeName {
			return true
		}
	}
	return false
}

// attr returns the value of the attribute named key. html.Parse keeps
// prefixed names such as "epub:type" verbatim outside foreign content.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findFirstElement(n *html.Node, tags ...string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			for _, tag := range tags {
				if c.Data == tag {
					return c
				}
			}
		}
		if found := findFirstElement(c, tags...); found != nil {
			return found
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
