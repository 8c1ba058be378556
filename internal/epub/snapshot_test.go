package epub

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/yuanying/fastepub/internal/epubtest"
)

func TestParse(t *testing.T) {
	p := epubtest.Write(t, "book.epub", epubtest.Book())

	snap, err := Parse(p, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if snap.OPFPath != "OEBPS/content.opf" || snap.ContentRoot != "OEBPS" {
		t.Errorf("OPFPath = %q, ContentRoot = %q", snap.OPFPath, snap.ContentRoot)
	}
	if snap.Title() != "Test Book" || snap.Author() != "Jane Author" {
		t.Errorf("Title = %q, Author = %q", snap.Title(), snap.Author())
	}
	if snap.Description() != "A book for tests." {
		t.Errorf("Description = %q", snap.Description())
	}
	if snap.UniqueIdentifier != "urn:uuid:1234" {
		t.Errorf("UniqueIdentifier = %q", snap.UniqueIdentifier)
	}
	if got, want := snap.Spine, []string{"ch1", "ch2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Spine = %v, want %v", got, want)
	}
	if snap.ChapterCount() != len(snap.Spine) {
		t.Errorf("ChapterCount() = %d, want %d", snap.ChapterCount(), len(snap.Spine))
	}
	if snap.CoverResourceID != "cover" {
		t.Errorf("CoverResourceID = %q, want cover", snap.CoverResourceID)
	}
	if !bytes.Equal(snap.ResourceBytes["cover"], epubtest.PNG) {
		t.Error("cover bytes do not match the archive entry")
	}

	if len(snap.Navigation) != 2 {
		t.Fatalf("got %d navigation entries, want 2", len(snap.Navigation))
	}
	if np := snap.Navigation[1]; np.ContentPath != "OEBPS/text/ch2.xhtml" || np.Fragment != "section2" {
		t.Errorf("Navigation[1] = %+v", np)
	}

	for id, r := range snap.Resources {
		if _, ok := snap.ResourceBytes[id]; !ok {
			t.Errorf("resource %s (%s) has no bytes", id, r.Path)
		}
	}
	for i, id := range snap.Spine {
		if _, ok := snap.Resources[id]; !ok {
			t.Errorf("spine[%d] = %s is not a resource", i, id)
		}
	}

	r, ok := snap.SpineResource(1)
	if !ok || r.Path != "OEBPS/text/ch2.xhtml" {
		t.Errorf("SpineResource(1) = %+v, %v", r, ok)
	}
	if _, ok := snap.SpineResource(2); ok {
		t.Error("SpineResource(2) should be out of range")
	}
}

func TestParse_PercentEncodedHrefs(t *testing.T) {
	files := epubtest.Book()
	files["OEBPS/content.opf"] = strings.Replace(files["OEBPS/content.opf"],
		`href="text/ch2.xhtml"`, `href="text/chapter%20two.xhtml"`, 1)
	files["OEBPS/toc.ncx"] = strings.Replace(files["OEBPS/toc.ncx"],
		`src="text/ch2.xhtml#section2"`, `src="text/chapter%20two.xhtml#section2"`, 1)
	files["OEBPS/text/chapter two.xhtml"] = files["OEBPS/text/ch2.xhtml"]
	delete(files, "OEBPS/text/ch2.xhtml")

	snap, err := Parse(epubtest.Write(t, "book.epub", files), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got, want := snap.Spine, []string{"ch1", "ch2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Spine = %v, want %v", got, want)
	}
	if r := snap.Resources["ch2"]; r.Path != "OEBPS/text/chapter two.xhtml" {
		t.Errorf("ch2 path = %q", r.Path)
	}
	if !strings.Contains(string(snap.ResourceBytes["ch2"]), "The end.") {
		t.Error("ch2 bytes were not read from the archive")
	}
	if np := snap.Navigation[1]; np.ContentPath != "OEBPS/text/chapter two.xhtml" || np.Fragment != "section2" {
		t.Errorf("Navigation[1] = %+v", np)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Parse(filepath.Join(t.TempDir(), "nope.epub"), Options{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing OPF", func(t *testing.T) {
		files := epubtest.Files{"META-INF/container.xml": epubtest.Container}
		_, err := Parse(epubtest.Write(t, "b.epub", files), Options{})
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("error = %v, want ErrMalformed", err)
		}
	})

	t.Run("broken OPF", func(t *testing.T) {
		files := epubtest.Files{
			"META-INF/container.xml": epubtest.Container,
			"OEBPS/content.opf":      "<notapackage/>",
		}
		_, err := Parse(epubtest.Write(t, "b.epub", files), Options{})
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("error = %v, want ErrMalformed", err)
		}
	})
}

func TestParse_DropsMissingAndRepeatedEntries(t *testing.T) {
	files := epubtest.Book()
	files["OEBPS/content.opf"] = `<?xml version="1.0"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>T</dc:title></metadata>
  <manifest>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ghost" href="text/ghost.xhtml" media-type="application/xhtml+xml"/>
    <item id="remote" href="https://example.com/font.otf" media-type="font/otf"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ghost"/>
    <itemref idref="unknown"/>
    <itemref idref="ch1"/>
    <itemref idref="ch2" linear="no"/>
  </spine>
</package>`

	data := epubtest.Bytes(t, files)
	snap, err := ParseArchive(bytes.NewReader(data), int64(len(data)), Options{})
	if err != nil {
		t.Fatalf("ParseArchive() error = %v", err)
	}

	if _, ok := snap.Resources["ghost"]; ok {
		t.Error("resource missing from the archive should be dropped")
	}
	if _, ok := snap.Resources["remote"]; ok {
		t.Error("remote resource should be skipped")
	}
	if got, want := snap.Spine, []string{"ch1", "ch2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Spine = %v, want %v", got, want)
	}
	if got, want := snap.SpineLinear, []bool{true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("SpineLinear = %v, want %v", got, want)
	}
	if len(snap.Navigation) != 0 {
		t.Errorf("Navigation = %+v, want none", snap.Navigation)
	}
}

func TestParse_EPUB3PrefersNavDocument(t *testing.T) {
	files := epubtest.Book()
	files["OEBPS/content.opf"] = `<?xml version="1.0"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>T</dc:title></metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="img" href="images/cover.png" media-type="image/png" properties="cover-image"/>
  </manifest>
  <spine toc="ncx"><itemref idref="ch1"/><itemref idref="ch2"/></spine>
</package>`
	files["OEBPS/nav.xhtml"] = `<html xmlns:epub="http://www.idpf.org/2007/ops"><body>
<nav epub:type="toc"><ol><li><a href="text/ch2.xhtml">Only Two</a></li></ol></nav>
</body></html>`

	snap, err := Parse(epubtest.Write(t, "v3.epub", files), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(snap.Navigation) != 1 || snap.Navigation[0].Label != "Only Two" {
		t.Errorf("Navigation = %+v, want the nav document entries", snap.Navigation)
	}
	if snap.CoverResourceID != "img" {
		t.Errorf("CoverResourceID = %q, want img", snap.CoverResourceID)
	}
}

func TestParse_RootLevelPackage(t *testing.T) {
	files := epubtest.Files{
		"META-INF/container.xml": `<container><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`,
		"content.opf": `<package version="2.0"><metadata/>
  <manifest><item id="a" href="a.xhtml" media-type="application/xhtml+xml"/></manifest>
  <spine><itemref idref="a"/></spine></package>`,
		"a.xhtml": epubtest.Chapter("A", "<p>a</p>"),
	}

	snap, err := Parse(epubtest.Write(t, "root.epub", files), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if snap.ContentRoot != DefaultContentRoot {
		t.Errorf("ContentRoot = %q, want %q", snap.ContentRoot, DefaultContentRoot)
	}
	if snap.Resources["a"].Path != "a.xhtml" {
		t.Errorf("Path = %q, want a.xhtml", snap.Resources["a"].Path)
	}
}
