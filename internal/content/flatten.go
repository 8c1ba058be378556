package content

import "github.com/yuanying/fastepub/internal/epub"

// FlatEntry is one navigation node in reading order.
type FlatEntry struct {
	PlayOrder int
	Path      string // archive path, without fragment
	Fragment  string
	Label     string
	Depth     int // 0 for top-level entries
}

// Flatten walks the navigation tree depth first: a parent comes before its
// children and siblings keep their declared order. Duplicate targets are
// preserved.
func Flatten(nodes []epub.NavPoint) []FlatEntry {
	var entries []FlatEntry
	var walk func(points []epub.NavPoint, depth int)
	walk = func(points []epub.NavPoint, depth int) {
		for _, np := range points {
			entries = append(entries, FlatEntry{
				PlayOrder: np.PlayOrder,
				Path:      np.ContentPath,
				Fragment:  np.Fragment,
				Label:     np.Label,
				Depth:     depth,
			})
			walk(np.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return entries
}
