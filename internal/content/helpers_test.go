package content

import (
	"strings"
	"testing"

	"github.com/yuanying/fastepub/internal/epub"
)

// snapshotBuilder assembles an in-memory snapshot without going through an
// archive.
type snapshotBuilder struct {
	snap *epub.Snapshot
}

func newSnapshot() *snapshotBuilder {
	return &snapshotBuilder{snap: &epub.Snapshot{
		ContentRoot:   "OEBPS",
		Resources:     make(map[string]epub.Resource),
		ResourceBytes: make(map[string][]byte),
		Metadata:      make(map[string][]string),
	}}
}

func (b *snapshotBuilder) resource(id, p, mediaType string, data []byte) *snapshotBuilder {
	b.snap.Resources[id] = epub.Resource{ID: id, Path: p, MediaType: mediaType}
	b.snap.ResourceOrder = append(b.snap.ResourceOrder, id)
	b.snap.ResourceBytes[id] = data
	return b
}

func (b *snapshotBuilder) chapter(id, p, body string) *snapshotBuilder {
	b.resource(id, p, "application/xhtml+xml", []byte(body))
	b.snap.Spine = append(b.snap.Spine, id)
	b.snap.SpineLinear = append(b.snap.SpineLinear, true)
	return b
}

func (b *snapshotBuilder) nav(points ...epub.NavPoint) *snapshotBuilder {
	b.snap.Navigation = append(b.snap.Navigation, points...)
	return b
}

func (b *snapshotBuilder) build() *epub.Snapshot {
	return b.snap
}

func navPoint(playOrder int, target, label string, children ...epub.NavPoint) epub.NavPoint {
	p, fragment := epub.SplitFragment(target)
	return epub.NavPoint{
		ID:          label,
		PlayOrder:   playOrder,
		Label:       label,
		ContentPath: p,
		Fragment:    fragment,
		Children:    children,
	}
}

func xhtml(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>` + title + `</title></head><body>` + body + `</body></html>`
}

func mustContain(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("output does not contain %q:\n%s", want, got)
	}
}

func mustNotContain(t *testing.T, got, unwanted string) {
	t.Helper()
	if strings.Contains(got, unwanted) {
		t.Errorf("output unexpectedly contains %q:\n%s", unwanted, got)
	}
}
