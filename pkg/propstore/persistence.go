package propstore

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Materialize serializes every node property map to one page file under
// dir, following the same page/epoch model as the triple store's
// PagedIndex. It is idempotent to call again after further Sets; the
// caller (compaction) is responsible for recording the returned
// descriptor in the next manifest.
func (s *NodeStore) Materialize(dir string, pageID uint64, codec pages.Codec, level int) (pages.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(s.props)))
	buf = append(buf, count[:]...)
	for id, m := range s.props {
		var idBuf [8]byte
		binary.LittleEndian.PutUint64(idBuf[:], uint64(id))
		buf = append(buf, idBuf[:]...)
		buf = append(buf, EncodePropertyMap(m)...)
	}

	path := filepath.Join(dir, fmt.Sprintf("nodeprops-%08d.page", pageID))
	if err := pages.WriteFile(path, codec, level, buf); err != nil {
		return pages.Descriptor{}, fmt.Errorf("propstore: writing node property page: %w", err)
	}
	return pages.Descriptor{ID: pageID, Path: path, Count: len(s.props), Codec: codec}, nil
}

// LoadDescriptor replaces this store's contents (props and index) with
// the page d decodes to, the shape used when reopening from a manifest.
func (s *NodeStore) LoadDescriptor(d pages.Descriptor) error {
	payload, err := pages.ReadFile(d.Path)
	if err != nil {
		return fmt.Errorf("propstore: loading node property page: %w", err)
	}
	props, err := decodeNodeProps(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = props
	s.index = NewIndex[types.AtomID]()
	for id, m := range props {
		for k, v := range m {
			s.index.Add(k, v, id)
		}
	}
	return nil
}

func decodeNodeProps(payload []byte) (map[types.AtomID]types.PropertyMap, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: truncated node property page header", nverrors.ErrCorruptedStore)
	}
	count := int(binary.LittleEndian.Uint32(payload[0:4]))
	off := 4
	out := make(map[types.AtomID]types.PropertyMap, count)
	for i := 0; i < count; i++ {
		if off+8 > len(payload) {
			return nil, fmt.Errorf("%w: truncated node property record", nverrors.ErrCorruptedStore)
		}
		id := types.AtomID(binary.LittleEndian.Uint64(payload[off : off+8]))
		off += 8
		m, n, err := DecodePropertyMap(payload[off:])
		if err != nil {
			return nil, err
		}
		out[id] = m
		off += n
	}
	return out, nil
}

// Materialize serializes every edge property map to one page file under
// dir, mirroring NodeStore.Materialize.
func (s *EdgeStore) Materialize(dir string, pageID uint64, codec pages.Codec, level int) (pages.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(s.props)))
	buf = append(buf, count[:]...)
	for key, m := range s.props {
		var tripleBuf [24]byte
		binary.LittleEndian.PutUint64(tripleBuf[0:8], uint64(key.S))
		binary.LittleEndian.PutUint64(tripleBuf[8:16], uint64(key.P))
		binary.LittleEndian.PutUint64(tripleBuf[16:24], uint64(key.O))
		buf = append(buf, tripleBuf[:]...)
		buf = append(buf, EncodePropertyMap(m)...)
	}

	path := filepath.Join(dir, fmt.Sprintf("edgeprops-%08d.page", pageID))
	if err := pages.WriteFile(path, codec, level, buf); err != nil {
		return pages.Descriptor{}, fmt.Errorf("propstore: writing edge property page: %w", err)
	}
	return pages.Descriptor{ID: pageID, Path: path, Count: len(s.props), Codec: codec}, nil
}

// LoadDescriptor replaces this store's contents with the page d decodes to.
func (s *EdgeStore) LoadDescriptor(d pages.Descriptor) error {
	payload, err := pages.ReadFile(d.Path)
	if err != nil {
		return fmt.Errorf("propstore: loading edge property page: %w", err)
	}
	props, err := decodeEdgeProps(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = props
	s.index = NewIndex[types.EncodedTriple]()
	for key, m := range props {
		for k, v := range m {
			s.index.Add(k, v, key)
		}
	}
	return nil
}

func decodeEdgeProps(payload []byte) (map[types.EncodedTriple]types.PropertyMap, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: truncated edge property page header", nverrors.ErrCorruptedStore)
	}
	count := int(binary.LittleEndian.Uint32(payload[0:4]))
	off := 4
	out := make(map[types.EncodedTriple]types.PropertyMap, count)
	for i := 0; i < count; i++ {
		if off+24 > len(payload) {
			return nil, fmt.Errorf("%w: truncated edge property record", nverrors.ErrCorruptedStore)
		}
		key := types.EncodedTriple{
			S: types.AtomID(binary.LittleEndian.Uint64(payload[off : off+8])),
			P: types.AtomID(binary.LittleEndian.Uint64(payload[off+8 : off+16])),
			O: types.AtomID(binary.LittleEndian.Uint64(payload[off+16 : off+24])),
		}
		off += 24
		m, n, err := DecodePropertyMap(payload[off:])
		if err != nil {
			return nil, err
		}
		out[key] = m
		off += n
	}
	return out, nil
}
