package content

import (
	"context"
	"encoding/base64"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/fastepub/internal/epub"
)

// ImageCache maps path keys to data: URIs. A single image is stored under
// several keys (full path, root-stripped path and bare file name), so
// distinct keys may share one value. The cache is read-only once built.
type ImageCache struct {
	norm    epub.Normalizer
	entries map[string]string
	keys    []string // longest first
}

// Get returns the data: URI stored under key.
func (c *ImageCache) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.entries[key]
	return v, ok
}

// Len returns the number of keys.
func (c *ImageCache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Keys returns every key, longest first.
func (c *ImageCache) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Lookup runs the image fallback chain for a reference found in the document
// at base (which may be empty) and returns the first hit.
func (c *ImageCache) Lookup(base, ref string) (string, bool) {
	if c == nil || len(c.entries) == 0 {
		return "", false
	}
	for _, strategy := range imageStrategies {
		for _, key := range strategy(c, base, ref) {
			if key == "" {
				continue
			}
			if v, ok := c.entries[key]; ok {
				return v, true
			}
		}
	}
	return "", false
}

func (c *ImageCache) longestSuffixKey(ref string) string {
	if ref == "" {
		return ""
	}
	for _, k := range c.keys {
		if strings.HasSuffix(ref, k) {
			return k
		}
	}
	return ""
}

// DataURI encodes data as a base64 data: URI.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// BuildImageCache inlines every image resource of snap.
func BuildImageCache(snap *epub.Snapshot, opts Options) *ImageCache {
	cache, _ := buildImageCache(context.Background(), snap, opts)
	return cache
}

// buildImageCache optimizes images concurrently and inserts them in manifest
// order, so the first resource to claim a key keeps it.
func buildImageCache(ctx context.Context, snap *epub.Snapshot, opts Options) (*ImageCache, error) {
	log := opts.logger()
	norm := snap.Normalizer()

	var images []epub.Resource
	for _, id := range snap.ResourceOrder {
		r := snap.Resources[id]
		if epub.IsImage(r.Path, r.MediaType) {
			images = append(images, r)
		}
	}

	encoded := make([]string, len(images))
	optimizer := newImageOptimizer(opts)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, r := range images {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mediaType := epub.ImageMediaType(r.Path, r.MediaType)
			out, err := optimizer.optimize(mediaType, snap.ResourceBytes[r.ID])
			if err != nil {
				log.Warn("image optimization failed, inlining original", "path", r.Path, "error", err)
				out = optimizedImage{Data: snap.ResourceBytes[r.ID], MediaType: mediaType}
			}
			if out.Warning != "" {
				log.Debug("image passed through", "path", r.Path, "reason", out.Warning)
			}
			if out.Resized {
				log.Debug("image downscaled", "path", r.Path, "width", out.Width, "height", out.Height)
			}
			encoded[i] = DataURI(out.MediaType, out.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cache := &ImageCache{norm: norm, entries: make(map[string]string, len(images)*3)}
	for i, r := range images {
		for _, key := range []string{norm.Clean(r.Path), norm.Normalize(r.Path), norm.Base(r.Path)} {
			if key == "" {
				continue
			}
			if _, taken := cache.entries[key]; taken {
				continue
			}
			cache.entries[key] = encoded[i]
		}
	}
	cache.keys = make([]string, 0, len(cache.entries))
	for k := range cache.entries {
		cache.keys = append(cache.keys, k)
	}
	sortedByLength(cache.keys)

	log.Debug("built image cache", "images", len(images), "keys", len(cache.entries))
	return cache, nil
}
