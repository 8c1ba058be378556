package epub

import (
	"path"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

// DetectCover detects the cover image among the snapshot's resources.
// Methods are tried in priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover" pointing directly at an image
//  4. filename pattern (basename contains "cover", case-insensitive)
//
// Returns nil if no cover image is found.
func (s *Snapshot) DetectCover() *CoverInfo {
	for _, id := range s.ResourceOrder {
		item := s.Resources[id]
		for _, prop := range item.Properties {
			if prop == "cover-image" {
				return coverInfo(item, "properties")
			}
		}
	}

	if s.CoverResourceID != "" {
		if item, ok := s.Resources[s.CoverResourceID]; ok && IsImage(item.Path, item.MediaType) {
			return coverInfo(item, "meta")
		}
	}

	for _, ref := range s.Guide {
		if ref.Type != "cover" {
			continue
		}
		guideHref, _ := SplitFragment(ref.Href)
		for _, id := range s.ResourceOrder {
			item := s.Resources[id]
			if item.Path == guideHref && IsImage(item.Path, item.MediaType) {
				return coverInfo(item, "guide")
			}
		}
	}

	for _, id := range s.ResourceOrder {
		item := s.Resources[id]
		if !IsImage(item.Path, item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(item.Path)), "cover") {
			return coverInfo(item, "filename")
		}
	}

	return nil
}

func coverInfo(item Resource, method string) *CoverInfo {
	return &CoverInfo{
		ManifestID:      item.ID,
		Href:            item.Path,
		MediaType:       item.MediaType,
		DetectionMethod: method,
	}
}

// imageExtensions maps file extensions that identify images when a package
// declares a wrong or empty media type.
var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// IsImage reports whether a resource is an image, by declared media type or
// by file extension.
func IsImage(p, mediaType string) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/") {
		return true
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// ImageMediaType returns the MIME type to embed an image with: the declared
// type when it is an image type, otherwise the type implied by the extension.
func ImageMediaType(p, mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	if mt, ok := imageExtensions[strings.ToLower(path.Ext(p))]; ok {
		return mt
	}
	return "application/octet-stream"
}
