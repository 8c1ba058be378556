package content

import (
	"reflect"
	"testing"
)

func TestBuildIndex_FragmentTargets(t *testing.T) {
	snap := newSnapshot().
		chapter("ch1", "OEBPS/ch1.xhtml", xhtml("One", "<p>one</p>")).
		chapter("ch2", "OEBPS/ch2.xhtml", xhtml("Two", "<p>two</p>")).
		nav(
			navPoint(1, "OEBPS/ch1.xhtml", "Chapter 1"),
			navPoint(2, "OEBPS/ch2.xhtml#section2", "Chapter 2"),
		).
		build()

	idx := BuildIndex(snap)

	if want := map[int]int{1: 0, 2: 1}; !reflect.DeepEqual(idx.PlayOrderToSpine, want) {
		t.Errorf("PlayOrderToSpine = %v, want %v", idx.PlayOrderToSpine, want)
	}
	if want := map[int]int{0: 1, 1: 2}; !reflect.DeepEqual(idx.SpineToPlayOrder, want) {
		t.Errorf("SpineToPlayOrder = %v, want %v", idx.SpineToPlayOrder, want)
	}
	if want := map[int]string{1: "ch1.xhtml", 2: "ch2.xhtml"}; !reflect.DeepEqual(idx.PlayOrderToPath, want) {
		t.Errorf("PlayOrderToPath = %v, want %v", idx.PlayOrderToPath, want)
	}

	chapter := ResolveChapter(snap, idx, BuildImageCache(snap, Options{}), 2, Options{})
	if chapter.SpineIndex != 1 || chapter.ID != "ch2" {
		t.Errorf("ResolveChapter(2) = spine %d id %q, want spine 1 id ch2", chapter.SpineIndex, chapter.ID)
	}
}

func TestBuildIndex_DuplicatePlayOrdersUseMinimum(t *testing.T) {
	snap := newSnapshot().
		chapter("ch1", "OEBPS/ch1.xhtml", xhtml("One", "")).
		chapter("ch2", "OEBPS/ch2.xhtml", xhtml("Two", "")).
		nav(
			navPoint(1, "OEBPS/ch1.xhtml", "Chapter 1"),
			navPoint(2, "OEBPS/ch2.xhtml", "Chapter 2"),
			navPoint(3, "OEBPS/ch1.xhtml#later", "Back to 1"),
		).
		build()

	idx := BuildIndex(snap)

	if got := idx.SpineToPlayOrder[0]; got != 1 {
		t.Errorf("SpineToPlayOrder[0] = %d, want 1", got)
	}
	for _, po := range []int{1, 3} {
		if got, ok := idx.PlayOrderToSpine[po]; !ok || got != 0 {
			t.Errorf("PlayOrderToSpine[%d] = %d, %v; want 0", po, got, ok)
		}
	}
}

func TestBuildIndex_ExactMatchOnly(t *testing.T) {
	snap := newSnapshot().
		chapter("sub", "OEBPS/sub/ch1.xhtml", xhtml("Sub", "")).
		chapter("top", "OEBPS/ch1.xhtml", xhtml("Top", "")).
		chapter("orphan", "OEBPS/appendix.xhtml", xhtml("Appendix", "")).
		nav(navPoint(1, "OEBPS/ch1.xhtml", "Chapter 1")).
		build()

	idx := BuildIndex(snap)

	if got := idx.PlayOrderToSpine[1]; got != 1 {
		t.Errorf("PlayOrderToSpine[1] = %d, want 1 (not the sub/ch1.xhtml document)", got)
	}
	if _, ok := idx.PlayOrder(0); ok {
		t.Error("sub/ch1.xhtml should have no play-order")
	}
	if _, ok := idx.PlayOrder(2); ok {
		t.Error("an unreferenced spine document should have no play-order")
	}
	for po, spine := range idx.PlayOrderToSpine {
		if spine < 0 || spine >= snap.ChapterCount() {
			t.Errorf("PlayOrderToSpine[%d] = %d is not a spine index", po, spine)
		}
	}
}

func TestBuildIndex_NavOutsideSpine(t *testing.T) {
	snap := newSnapshot().
		chapter("ch1", "OEBPS/ch1.xhtml", xhtml("One", "")).
		resource("notes", "OEBPS/notes.xhtml", "application/xhtml+xml", []byte(xhtml("Notes", "<p>n</p>"))).
		nav(
			navPoint(1, "OEBPS/ch1.xhtml", "Chapter 1"),
			navPoint(2, "OEBPS/notes.xhtml", "Notes"),
		).
		build()

	idx := BuildIndex(snap)

	if _, ok := idx.SpineIndex(2); ok {
		t.Error("a navigation entry outside the spine should have no spine index")
	}
	if got := idx.PlayOrderToPath[2]; got != "notes.xhtml" {
		t.Errorf("PlayOrderToPath[2] = %q, want notes.xhtml", got)
	}

	chapter := ResolveChapter(snap, idx, nil, 2, Options{})
	if chapter.Status != StatusOK || chapter.ID != "notes" || chapter.SpineIndex != -1 {
		t.Errorf("ResolveChapter(2) = %+v", chapter)
	}
}

func TestBuildIndex_FirstPathWinsForDuplicatePlayOrder(t *testing.T) {
	snap := newSnapshot().
		chapter("ch1", "OEBPS/ch1.xhtml", xhtml("One", "")).
		chapter("ch2", "OEBPS/ch2.xhtml", xhtml("Two", "")).
		nav(
			navPoint(1, "OEBPS/ch1.xhtml", "Chapter 1"),
			navPoint(1, "OEBPS/ch2.xhtml", "Chapter 2"),
		).
		build()

	idx := BuildIndex(snap)

	if got := idx.PlayOrderToPath[1]; got != "ch1.xhtml" {
		t.Errorf("PlayOrderToPath[1] = %q, want ch1.xhtml", got)
	}
	if got := idx.PlayOrderToSpine[1]; got != 0 {
		t.Errorf("PlayOrderToSpine[1] = %d, want 0", got)
	}
	if got, ok := idx.SpineToPlayOrder[1]; ok {
		t.Errorf("SpineToPlayOrder[1] = %d, want no mapping", got)
	}
}

func TestBuildIndex_DuplicatePlayOrderAgreesWithSpine(t *testing.T) {
	// The losing path comes first in the spine.
	snap := newSnapshot().
		chapter("ch2", "OEBPS/ch2.xhtml", xhtml("Two", "")).
		chapter("ch1", "OEBPS/ch1.xhtml", xhtml("One", "")).
		nav(
			navPoint(1, "OEBPS/ch1.xhtml", "Chapter 1"),
			navPoint(1, "OEBPS/ch2.xhtml", "Chapter 2"),
		).
		build()

	idx := BuildIndex(snap)

	if got := idx.PlayOrderToSpine[1]; got != 1 {
		t.Errorf("PlayOrderToSpine[1] = %d, want 1", got)
	}
	if got, ok := idx.SpineToPlayOrder[0]; ok {
		t.Errorf("SpineToPlayOrder[0] = %d, want no mapping", got)
	}
	if got := idx.SpineToPlayOrder[1]; got != 1 {
		t.Errorf("SpineToPlayOrder[1] = %d, want 1", got)
	}

	for spineIndex, playOrder := range idx.SpineToPlayOrder {
		byPlayOrder := ResolveChapter(snap, idx, nil, playOrder, Options{})
		bySpine := ResolveSpine(snap, idx, nil, spineIndex, Options{})
		if byPlayOrder.ID != bySpine.ID || byPlayOrder.SpineIndex != spineIndex {
			t.Errorf("play-order %d resolved to %s at spine %d, spine %d holds %s",
				playOrder, byPlayOrder.ID, byPlayOrder.SpineIndex, spineIndex, bySpine.ID)
		}
	}
	if got := ResolveChapter(snap, idx, nil, 1, Options{}); got.ID != "ch1" {
		t.Errorf("ResolveChapter(1).ID = %q, want ch1", got.ID)
	}
}
