package labelstore

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Materialize serializes the node->label-set mapping to one page file
// under dir, following the same page/epoch model as the triple and
// property stores.
func (s *Store) Materialize(dir string, pageID uint64, codec pages.Codec, level int) (pages.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(s.labels)))
	buf = append(buf, count[:]...)
	for id, set := range s.labels {
		var idBuf [8]byte
		binary.LittleEndian.PutUint64(idBuf[:], uint64(id))
		buf = append(buf, idBuf[:]...)

		var labelCount [4]byte
		binary.LittleEndian.PutUint32(labelCount[:], uint32(len(set)))
		buf = append(buf, labelCount[:]...)
		for l := range set {
			buf = appendLenPrefixed(buf, []byte(l))
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("labels-%08d.page", pageID))
	if err := pages.WriteFile(path, codec, level, buf); err != nil {
		return pages.Descriptor{}, fmt.Errorf("labelstore: writing label page: %w", err)
	}
	return pages.Descriptor{ID: pageID, Path: path, Count: len(s.labels), Codec: codec}, nil
}

// LoadDescriptor replaces this store's contents with the page d decodes to.
func (s *Store) LoadDescriptor(d pages.Descriptor) error {
	payload, err := pages.ReadFile(d.Path)
	if err != nil {
		return fmt.Errorf("labelstore: loading label page: %w", err)
	}
	labels, err := decodeLabels(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = labels
	s.postings = make(map[string]map[types.AtomID]struct{})
	for id, set := range labels {
		for l := range set {
			s.index(l, id)
		}
	}
	return nil
}

func decodeLabels(payload []byte) (map[types.AtomID]types.LabelSet, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: truncated label page header", nverrors.ErrCorruptedStore)
	}
	count := int(binary.LittleEndian.Uint32(payload[0:4]))
	off := 4
	out := make(map[types.AtomID]types.LabelSet, count)
	for i := 0; i < count; i++ {
		if off+12 > len(payload) {
			return nil, fmt.Errorf("%w: truncated label record", nverrors.ErrCorruptedStore)
		}
		id := types.AtomID(binary.LittleEndian.Uint64(payload[off : off+8]))
		off += 8
		labelCount := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		set := make(types.LabelSet, labelCount)
		for j := 0; j < labelCount; j++ {
			b, n, err := readLenPrefixed(payload[off:])
			if err != nil {
				return nil, err
			}
			set[string(b)] = struct{}{}
			off += n
		}
		out[id] = set
	}
	return out, nil
}

func appendLenPrefixed(buf, b []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(b)))
	buf = append(buf, tmp[:]...)
	return append(buf, b...)
}

func readLenPrefixed(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("%w: truncated length prefix", nverrors.ErrCorruptedStore)
	}
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	if len(buf) < 4+n {
		return nil, 0, fmt.Errorf("%w: truncated length-prefixed payload", nverrors.ErrCorruptedStore)
	}
	return buf[4 : 4+n], 4 + n, nil
}
