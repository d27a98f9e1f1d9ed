package pages

import "github.com/nervusdb/nervusdb/pkg/types"

// Descriptor is a page's metadata, persisted inside the manifest for
// the epoch that introduced it: which file holds it, its primary-key
// range within whatever ordering its owning index uses, how many
// records it holds, and which codec it was written with. The page
// itself never needs to be opened to answer "could this page contain a
// match for this key prefix?" — that's exactly the per-page metadata a
// query plan consults before touching disk.
type Descriptor struct {
	ID     uint64
	Path   string
	MinKey []types.AtomID
	MaxKey []types.AtomID
	Count  int
	Codec  Codec
}

// ContainsPrefix reports whether this page's key range could contain a
// record whose leading components equal prefix — a conservative test
// (never a false negative, may be a false positive that the caller
// filters out after decoding).
func (d Descriptor) ContainsPrefix(prefix []types.AtomID) bool {
	n := len(prefix)
	if n == 0 {
		return true
	}
	if n > len(d.MinKey) || n > len(d.MaxKey) {
		n = min(len(d.MinKey), len(d.MaxKey))
	}
	return lexCompare(d.MinKey[:n], prefix) <= 0 && lexCompare(prefix, d.MaxKey[:n]) <= 0
}

func lexCompare(a, b []types.AtomID) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}
