package content

import (
	"github.com/yuanying/fastepub/internal/epub"
)

// ChapterIndex maps between navigation play-orders and spine positions. Both
// directions are partial: a spine document may have no navigation entry, and
// a navigation entry may point outside the spine.
type ChapterIndex struct {
	// PlayOrderToPath holds the normalized target path of each play-order.
	// A duplicated play-order keeps its first declared path.
	PlayOrderToPath map[int]string

	// PlayOrderToSpine maps every play-order whose PlayOrderToPath target is
	// a spine document to that document's spine index.
	PlayOrderToSpine map[int]int

	// SpineToPlayOrder maps a spine index to the smallest play-order whose
	// PlayOrderToPath target it is.
	SpineToPlayOrder map[int]int

	// Entries is the flattened navigation.
	Entries []FlatEntry

	spineByPath map[string]int
	resources   *pathTable
}

// BuildIndex flattens the navigation of snap and matches it against the
// spine. Paths match only when their normalized forms are equal.
func BuildIndex(snap *epub.Snapshot) *ChapterIndex {
	norm := snap.Normalizer()
	idx := &ChapterIndex{
		PlayOrderToPath:  make(map[int]string),
		PlayOrderToSpine: make(map[int]int),
		SpineToPlayOrder: make(map[int]int),
		Entries:          Flatten(snap.Navigation),
		spineByPath:      make(map[string]int, len(snap.Spine)),
		resources:        newPathTable(snap, nil),
	}

	for _, e := range idx.Entries {
		if _, ok := idx.PlayOrderToPath[e.PlayOrder]; !ok {
			idx.PlayOrderToPath[e.PlayOrder] = norm.Normalize(e.Path)
		}
	}

	for i, id := range snap.Spine {
		spinePath := norm.Normalize(snap.Resources[id].Path)
		if spinePath == "" {
			continue
		}
		if _, ok := idx.spineByPath[spinePath]; !ok {
			idx.spineByPath[spinePath] = i
		}
	}

	// Only the path a play-order resolves to may claim it, so both maps agree
	// with PlayOrderToPath.
	for p, target := range idx.PlayOrderToPath {
		i, ok := idx.spineByPath[target]
		if !ok {
			continue
		}
		idx.PlayOrderToSpine[p] = i
		if cur, ok := idx.SpineToPlayOrder[i]; !ok || p < cur {
			idx.SpineToPlayOrder[i] = p
		}
	}
	return idx
}

// SpineIndex returns the spine index a play-order resolves to.
func (idx *ChapterIndex) SpineIndex(playOrder int) (int, bool) {
	i, ok := idx.PlayOrderToSpine[playOrder]
	return i, ok
}

// PlayOrder returns the play-order of the spine document at spineIndex.
func (idx *ChapterIndex) PlayOrder(spineIndex int) (int, bool) {
	p, ok := idx.SpineToPlayOrder[spineIndex]
	return p, ok
}

// SpineIndexForPath returns the spine index of the document at p, compared in
// normalized form.
func (idx *ChapterIndex) SpineIndexForPath(norm epub.Normalizer, p string) (int, bool) {
	i, ok := idx.spineByPath[norm.Normalize(p)]
	return i, ok
}

// Entry returns the first flattened entry with the given play-order.
func (idx *ChapterIndex) Entry(playOrder int) (FlatEntry, bool) {
	for _, e := range idx.Entries {
		if e.PlayOrder == playOrder {
			return e, true
		}
	}
	return FlatEntry{}, false
}
