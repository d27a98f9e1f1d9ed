package triplestore

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// PagedIndex is one of the six sorted orderings over the triple set: a
// directory of immutable, on-disk pages plus a shared decoded-page
// cache. It never holds the staging overlay itself — that is shared
// across all six orderings and supplied to Scan by the caller.
type PagedIndex struct {
	mu       sync.RWMutex
	ordering types.Ordering
	baseDir  string
	dir      []pages.Descriptor
	cache    *pages.Cache
	nextID   uint64
}

// NewPagedIndex builds an empty index for ordering, rooted at baseDir,
// sharing cache with sibling orderings.
func NewPagedIndex(ordering types.Ordering, baseDir string, cache *pages.Cache) *PagedIndex {
	return &PagedIndex{ordering: ordering, baseDir: baseDir, cache: cache}
}

// OpenFromDescriptors replaces the page directory wholesale, the shape
// used when reopening a store from its manifest.
func (idx *PagedIndex) OpenFromDescriptors(descs []pages.Descriptor) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	sorted := append([]pages.Descriptor(nil), descs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	idx.dir = sorted
	for _, d := range sorted {
		if d.ID >= idx.nextID {
			idx.nextID = d.ID + 1
		}
	}
}

// Descriptors returns the current page directory, for the manifest writer.
func (idx *PagedIndex) Descriptors() []pages.Descriptor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]pages.Descriptor(nil), idx.dir...)
}

// WritePages splits sorted (must already be ordered per idx.ordering)
// into fixed-capacity pages, writes each to baseDir, and replaces the
// page directory with the new descriptors. Used by compaction to
// materialize a fresh epoch.
func (idx *PagedIndex) WritePages(sorted []types.EncodedTriple, capacity int, codec pages.Codec, level int) ([]pages.Descriptor, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var out []pages.Descriptor
	for start := 0; start < len(sorted); start += capacity {
		end := min(start+capacity, len(sorted))
		chunk := sorted[start:end]

		id := idx.nextID
		idx.nextID++
		path := idx.pagePath(id)
		payload := encodeRecords(idx.ordering, chunk)
		if err := pages.WriteFile(path, codec, level, payload); err != nil {
			return nil, fmt.Errorf("triplestore: writing page %d for %s: %w", id, idx.ordering, err)
		}

		minC := idx.ordering.Components(chunk[0])
		maxC := idx.ordering.Components(chunk[len(chunk)-1])
		out = append(out, pages.Descriptor{
			ID:     id,
			Path:   path,
			MinKey: minC[:],
			MaxKey: maxC[:],
			Count:  len(chunk),
			Codec:  codec,
		})
		if idx.cache != nil {
			idx.cache.Put(path, payload)
		}
	}
	idx.dir = out
	return out, nil
}

func (idx *PagedIndex) pagePath(id uint64) string {
	return filepath.Join(idx.baseDir, fmt.Sprintf("%s-%08d.page", idx.ordering, id))
}

// loadPage returns a page's decoded triples, consulting the shared cache
// before touching disk.
func (idx *PagedIndex) loadPage(d pages.Descriptor) ([]types.EncodedTriple, error) {
	if idx.cache != nil {
		if payload, ok := idx.cache.Get(d.Path); ok {
			return decodeRecords(idx.ordering, payload)
		}
	}
	payload, err := pages.ReadFile(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: loading page %s: %v", nverrors.ErrIO, d.Path, err)
	}
	if idx.cache != nil {
		idx.cache.Put(d.Path, payload)
	}
	return decodeRecords(idx.ordering, payload)
}

// candidatePages returns, in directory order, the descriptors whose
// range could satisfy criteria's bound prefix in this ordering.
func (idx *PagedIndex) candidatePages(criteria types.Criteria) []pages.Descriptor {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	prefix := criteria.Prefix(idx.ordering)
	// The directory is in key order: skip every page whose MaxKey sorts below prefix.
	start := sort.Search(len(idx.dir), func(i int) bool {
		k := idx.dir[i].MaxKey
		for j := 0; j < len(prefix) && j < len(k); j++ {
			if k[j] != prefix[j] {
				return k[j] > prefix[j]
			}
		}
		return true
	})
	var out []pages.Descriptor
	for _, d := range idx.dir[start:] {
		if !d.ContainsPrefix(prefix) {
			break
		}
		out = append(out, d)
	}
	return out
}

// PrimaryValues returns the distinct values of this ordering's primary
// key component across matching triples, used by the query layer to
// enumerate candidate subjects/predicates/objects without decoding
// every component of every match.
func (idx *PagedIndex) PrimaryValues(criteria types.Criteria, staging *Staging) ([]types.AtomID, error) {
	it, err := idx.Scan(criteria, staging)
	if err != nil {
		return nil, err
	}
	defer it.Cancel()
	seen := make(map[types.AtomID]struct{})
	var out []types.AtomID
	for {
		t, ok := it.Next()
		if !ok {
			break
		}
		v := idx.ordering.Components(t)[0]
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}
