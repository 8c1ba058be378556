package epub

import (
	"fmt"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// ParseOPF parses an OPF file content and returns the OPF structure.
// opfDir is the directory containing the OPF file (e.g., "OEBPS"); manifest
// hrefs are joined with it so every Href is an archive path.
func ParseOPF(content []byte, opfDir string) (*OPF, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	pkg := doc.Root()
	if pkg == nil || pkg.Tag != "package" {
		return nil, fmt.Errorf("failed to parse OPF XML: root element is not <package>")
	}

	opf := &OPF{
		Version:  pkg.SelectAttrValue("version", ""),
		UniqueID: pkg.SelectAttrValue("unique-identifier", ""),
		Manifest: make(map[string]ManifestItem),
	}

	if meta := pkg.SelectElement("metadata"); meta != nil {
		opf.Metadata = parseMetadata(meta, opf.UniqueID)
	} else {
		opf.Metadata = Metadata{Values: map[string][]string{}}
	}

	if manifest := pkg.SelectElement("manifest"); manifest != nil {
		for _, item := range manifest.SelectElements("item") {
			id := item.SelectAttrValue("id", "")
			href := item.SelectAttrValue("href", "")
			if id == "" || href == "" {
				continue
			}
			if _, dup := opf.Manifest[id]; dup {
				continue
			}
			manifestItem := ManifestItem{
				ID:         id,
				Href:       joinPath(opfDir, href),
				MediaType:  strings.TrimSpace(item.SelectAttrValue("media-type", "")),
				Properties: strings.Fields(item.SelectAttrValue("properties", "")),
			}
			opf.Manifest[id] = manifestItem
			opf.ManifestOrder = append(opf.ManifestOrder, id)
			if opf.NavPath == "" && manifestItem.HasProperty("nav") {
				opf.NavPath = manifestItem.Href
			}
		}
	}

	if spine := pkg.SelectElement("spine"); spine != nil {
		for _, ref := range spine.SelectElements("itemref") {
			opf.Spine = append(opf.Spine, SpineItem{
				IDRef:  ref.SelectAttrValue("idref", ""),
				Linear: ref.SelectAttrValue("linear", "yes") != "no",
			})
		}

		// Resolve NCX path from toc attribute
		if tocID := spine.SelectAttrValue("toc", ""); tocID != "" {
			if ncxItem, ok := opf.Manifest[tocID]; ok {
				opf.NCXPath = ncxItem.Href
			}
		}
	}

	// Some EPUB 2 packages omit spine@toc but still ship an NCX.
	if opf.NCXPath == "" {
		for _, id := range opf.ManifestOrder {
			if item := opf.Manifest[id]; item.MediaType == "application/x-dtbncx+xml" {
				opf.NCXPath = item.Href
				break
			}
		}
	}

	if guide := pkg.SelectElement("guide"); guide != nil {
		for _, ref := range guide.SelectElements("reference") {
			opf.Guide = append(opf.Guide, GuideReference{
				Type:  ref.SelectAttrValue("type", ""),
				Title: ref.SelectAttrValue("title", ""),
				Href:  joinPath(opfDir, ref.SelectAttrValue("href", "")),
			})
		}
	}

	return opf, nil
}

// parseMetadata collects every metadata child into Values and derives the
// creator list, unique identifier and EPUB 2 cover id.
func parseMetadata(meta *etree.Element, uniqueID string) Metadata {
	md := Metadata{Values: make(map[string][]string)}

	// EPUB 2 wraps Dublin Core elements in <dc-metadata>.
	elements := meta.ChildElements()
	if dc := meta.SelectElement("dc-metadata"); dc != nil {
		elements = append(elements, dc.ChildElements()...)
	}

	creatorIDs := make(map[string]int)
	for _, el := range elements {
		switch el.Tag {
		case "meta":
			name := el.SelectAttrValue("name", "")
			if name != "" {
				content := strings.TrimSpace(el.SelectAttrValue("content", ""))
				md.Values[name] = append(md.Values[name], content)
				if name == "cover" && md.CoverID == "" {
					md.CoverID = content
				}
			}
		case "dc-metadata", "x-metadata":
		default:
			value := strings.TrimSpace(el.Text())
			if value == "" {
				continue
			}
			md.Values[el.Tag] = append(md.Values[el.Tag], value)

			switch el.Tag {
			case "creator":
				if id := el.SelectAttrValue("id", ""); id != "" {
					creatorIDs["#"+id] = len(md.Creators)
				}
				md.Creators = append(md.Creators, Creator{
					Name: value,
					Role: attrLocal(el, "role"),
					Lang: attrLocal(el, "lang"),
				})
			case "identifier":
				if md.Identifier == "" && uniqueID != "" && el.SelectAttrValue("id", "") == uniqueID {
					md.Identifier = value
				}
			}
		}
	}

	// If not found, use first one
	if md.Identifier == "" {
		md.Identifier = md.First("identifier")
	}

	processCreatorRoles(&md, elements, creatorIDs)
	return md
}

// processCreatorRoles applies EPUB 3.0 <meta refines="#id" property="role">
// elements to the creators they refine.
func processCreatorRoles(md *Metadata, elements []*etree.Element, creatorIDs map[string]int) {
	for _, el := range elements {
		if el.Tag != "meta" || el.SelectAttrValue("property", "") != "role" {
			continue
		}
		idx, ok := creatorIDs[el.SelectAttrValue("refines", "")]
		if !ok {
			continue
		}
		// EPUB 3.0 uses chardata, EPUB 2.0 style uses the content attribute
		if v := strings.TrimSpace(el.Text()); v != "" {
			md.Creators[idx].Role = v
		} else {
			md.Creators[idx].Role = el.SelectAttrValue("content", "")
		}
	}
}

// attrLocal returns the value of the first attribute whose local name is key,
// whatever its namespace prefix (opf:role, xml:lang).
func attrLocal(el *etree.Element, key string) string {
	for _, a := range el.Attr {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// joinPath joins OPF directory with a relative href. The href is
// percent-decoded; a fragment is kept as written.
func joinPath(base, rel string) string {
	rel, fragment := SplitFragment(strings.ReplaceAll(rel, `\`, "/"))
	rel = unescapePath(rel)
	if base != "" && base != "." {
		rel = path.Join(base, rel)
	}
	if fragment != "" {
		return archivePath(rel) + "#" + fragment
	}
	return archivePath(rel)
}
