package triplestore

import (
	"fmt"

	"github.com/nervusdb/nervusdb/pkg/types"
)

// Iterator streams matching triples from a PagedIndex merged with the
// staging overlay, in this ordering's sort order, with tombstones
// suppressed and overlap deduplicated. It satisfies the spec's
// findStreaming contract: Next() pulls one record at a time and Cancel()
// releases any pinned pages without having to drain the rest.
type Iterator struct {
	ordering types.Ordering
	idx      *PagedIndex
	staging  *Staging
	criteria types.Criteria

	pages    []pageCursor
	overlay  []types.EncodedTriple
	overlayI int

	lastEmitted types.EncodedTriple
	haveLast    bool
	err         error
}

type pageCursor struct {
	triples []types.EncodedTriple
	i       int
	path    string
}

// Scan builds an Iterator for criteria over this index, merged against
// staging (nil is treated as an empty overlay).
func (idx *PagedIndex) Scan(criteria types.Criteria, staging *Staging) (*Iterator, error) {
	candidates := idx.candidatePages(criteria)
	cursors := make([]pageCursor, 0, len(candidates))
	for _, d := range candidates {
		triples, err := idx.loadPage(d)
		if err != nil {
			return nil, fmt.Errorf("triplestore: scanning %s: %w", idx.ordering, err)
		}
		if idx.cache != nil {
			idx.cache.Pin(d.Path)
		}
		filtered := triples[:0:0]
		for _, t := range triples {
			if criteria.Matches(t) {
				filtered = append(filtered, t)
			}
		}
		cursors = append(cursors, pageCursor{triples: filtered, path: d.Path})
	}

	var overlay []types.EncodedTriple
	if staging != nil {
		overlay = staging.Matching(idx.ordering, criteria)
	}

	return &Iterator{
		ordering: idx.ordering,
		idx:      idx,
		staging:  staging,
		criteria: criteria,
		pages:    cursors,
		overlay:  overlay,
	}, nil
}

// Next returns the next matching triple in ordering, or ok=false once
// exhausted. Triples tombstoned by staging are skipped transparently;
// a triple present in both a page and the overlay's added set is
// emitted once.
func (it *Iterator) Next() (types.EncodedTriple, bool) {
	for {
		t, ok := it.nextMerged()
		if !ok {
			return types.EncodedTriple{}, false
		}
		if it.staging != nil && it.staging.Tombstoned(t) {
			continue
		}
		if it.haveLast && it.lastEmitted == t {
			continue
		}
		it.lastEmitted, it.haveLast = t, true
		return t, true
	}
}

// nextMerged performs a k-way merge across every page cursor plus the
// sorted overlay slice, returning the smallest remaining triple under
// this ordering's Less.
func (it *Iterator) nextMerged() (types.EncodedTriple, bool) {
	bestPage := -1
	for i := range it.pages {
		c := &it.pages[i]
		if c.i >= len(c.triples) {
			continue
		}
		if bestPage == -1 || it.ordering.Less(c.triples[c.i], it.pages[bestPage].triples[it.pages[bestPage].i]) {
			bestPage = i
		}
	}

	haveOverlay := it.overlayI < len(it.overlay)

	switch {
	case bestPage == -1 && !haveOverlay:
		return types.EncodedTriple{}, false
	case bestPage == -1:
		t := it.overlay[it.overlayI]
		it.overlayI++
		return t, true
	case !haveOverlay:
		c := &it.pages[bestPage]
		t := c.triples[c.i]
		c.i++
		return t, true
	default:
		ot := it.overlay[it.overlayI]
		pt := it.pages[bestPage].triples[it.pages[bestPage].i]
		if it.ordering.Less(ot, pt) {
			it.overlayI++
			return ot, true
		}
		c := &it.pages[bestPage]
		c.i++
		return pt, true
	}
}

// Cancel releases any pages pinned by this scan. Safe to call after
// full consumption or early abandonment; idempotent.
func (it *Iterator) Cancel() {
	if it.idx == nil || it.idx.cache == nil {
		return
	}
	for _, c := range it.pages {
		it.idx.cache.Unpin(c.path)
	}
	it.pages = nil
}

// Err returns any error encountered building the iterator (Scan already
// surfaces construction errors; this is kept for callers that only check
// at the end of a loop).
func (it *Iterator) Err() error { return it.err }
