package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// NCX represents the parsed navigation control structure from NCX or NAV document.
type NCX struct {
	UID       string
	Depth     int
	DocTitle  string
	NavPoints []NavPoint
}

// NavPoint represents a single navigation point in the table of contents.
type NavPoint struct {
	ID          string
	PlayOrder   int
	Label       string
	ContentPath string // fragment-free, absolute path within EPUB
	Fragment    string // fragment identifier (without #)
	Children    []NavPoint
}

// Target returns the archive path with its fragment, as the TOC declared it.
func (np NavPoint) Target() string {
	if np.Fragment == "" {
		return np.ContentPath
	}
	return np.ContentPath + "#" + np.Fragment
}

type ncxDocument struct {
	XMLName  xml.Name   `xml:"ncx"`
	Meta     []ncxMeta  `xml:"head>meta"`
	DocTitle ncxText    `xml:"docTitle"`
	NavMap   ncxNavList `xml:"navMap"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxText struct {
	Text string `xml:"text"`
}

type ncxNavList struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID        string        `xml:"id,attr"`
	PlayOrder string        `xml:"playOrder,attr"`
	Label     ncxText       `xml:"navLabel"`
	Content   ncxContent    `xml:"content"`
	Children  []ncxNavPoint `xml:"navPoint"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// parseNCX parses NCX (EPUB 2) data. ncxPath is the archive path of the NCX
// file; content sources are resolved against its directory.
//
// A navPoint whose playOrder is missing or not a positive number takes its
// 1-based pre-order position instead.
func parseNCX(data []byte, ncxPath string) (*NCX, error) {
	var doc ncxDocument
	decoder := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	ncx := &NCX{DocTitle: strings.TrimSpace(doc.DocTitle.Text)}
	for _, m := range doc.Meta {
		switch m.Name {
		case "dtb:uid":
			ncx.UID = m.Content
		case "dtb:depth":
			ncx.Depth, _ = strconv.Atoi(strings.TrimSpace(m.Content))
		}
	}

	position := 0
	ncx.NavPoints = convertNavPoints(doc.NavMap.NavPoints, ncxPath, &position)
	return ncx, nil
}

func convertNavPoints(points []ncxNavPoint, ncxPath string, position *int) []NavPoint {
	if len(points) == 0 {
		return nil
	}
	result := make([]NavPoint, 0, len(points))
	for _, p := range points {
		*position++
		order, err := strconv.Atoi(strings.TrimSpace(p.PlayOrder))
		if err != nil || order <= 0 {
			order = *position
		}
		contentPath, fragment := SplitFragment(ResolveRelative(ncxPath, p.Content.Src))
		np := NavPoint{
			ID:          p.ID,
			PlayOrder:   order,
			Label:       strings.TrimSpace(p.Label.Text),
			ContentPath: contentPath,
			Fragment:    fragment,
		}
		np.Children = convertNavPoints(p.Children, ncxPath, position)
		result = append(result, np)
	}
	return result
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
