package propstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// encodeValue appends a self-describing encoding of v to buf: a one-byte
// Kind tag followed by the kind's payload. Decoding never consults
// anything outside the bytes themselves.
func encodeValue(buf []byte, v types.Value) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case types.KindNull:
		// no payload
	case types.KindBool:
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case types.KindInt:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.Int))
		buf = append(buf, tmp[:]...)
	case types.KindFloat:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.Float))
		buf = append(buf, tmp[:]...)
	case types.KindString:
		buf = appendLenPrefixed(buf, []byte(v.Str))
	case types.KindBytes:
		buf = appendLenPrefixed(buf, v.Bytes)
	case types.KindList:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.List)))
		buf = append(buf, tmp[:]...)
		for _, elem := range v.List {
			buf = encodeValue(buf, elem)
		}
	case types.KindMap:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.Map)))
		buf = append(buf, tmp[:]...)
		for k, mv := range v.Map {
			buf = appendLenPrefixed(buf, []byte(k))
			buf = encodeValue(buf, mv)
		}
	}
	return buf
}

// decodeValue is the inverse of encodeValue, returning the decoded Value
// and the number of bytes consumed from buf.
func decodeValue(buf []byte) (types.Value, int, error) {
	if len(buf) < 1 {
		return types.Value{}, 0, fmt.Errorf("%w: empty value encoding", nverrors.ErrCorruptedStore)
	}
	kind := types.ValueKind(buf[0])
	off := 1
	switch kind {
	case types.KindNull:
		return types.Null(), off, nil
	case types.KindBool:
		if off >= len(buf) {
			return types.Value{}, 0, fmt.Errorf("%w: truncated bool value", nverrors.ErrCorruptedStore)
		}
		return types.NewBool(buf[off] != 0), off + 1, nil
	case types.KindInt:
		if off+8 > len(buf) {
			return types.Value{}, 0, fmt.Errorf("%w: truncated int value", nverrors.ErrCorruptedStore)
		}
		return types.NewInt(int64(binary.LittleEndian.Uint64(buf[off : off+8]))), off + 8, nil
	case types.KindFloat:
		if off+8 > len(buf) {
			return types.Value{}, 0, fmt.Errorf("%w: truncated float value", nverrors.ErrCorruptedStore)
		}
		return types.NewFloat(math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))), off + 8, nil
	case types.KindString:
		b, n, err := readLenPrefixed(buf[off:])
		if err != nil {
			return types.Value{}, 0, err
		}
		return types.NewString(string(b)), off + n, nil
	case types.KindBytes:
		b, n, err := readLenPrefixed(buf[off:])
		if err != nil {
			return types.Value{}, 0, err
		}
		return types.NewBytes(b), off + n, nil
	case types.KindList:
		if off+4 > len(buf) {
			return types.Value{}, 0, fmt.Errorf("%w: truncated list value", nverrors.ErrCorruptedStore)
		}
		count := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		list := make([]types.Value, count)
		for i := 0; i < count; i++ {
			v, n, err := decodeValue(buf[off:])
			if err != nil {
				return types.Value{}, 0, err
			}
			list[i] = v
			off += n
		}
		return types.NewList(list), off, nil
	case types.KindMap:
		if off+4 > len(buf) {
			return types.Value{}, 0, fmt.Errorf("%w: truncated map value", nverrors.ErrCorruptedStore)
		}
		count := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		m := make(map[string]types.Value, count)
		for i := 0; i < count; i++ {
			kb, n, err := readLenPrefixed(buf[off:])
			if err != nil {
				return types.Value{}, 0, err
			}
			off += n
			v, n2, err := decodeValue(buf[off:])
			if err != nil {
				return types.Value{}, 0, err
			}
			m[string(kb)] = v
			off += n2
		}
		return types.NewMap(m), off, nil
	default:
		return types.Value{}, 0, fmt.Errorf("%w: unknown value kind tag %d", nverrors.ErrCorruptedStore, kind)
	}
}

// EncodePropertyMap serializes a property map as a count followed by
// (key, value) pairs.
func EncodePropertyMap(m types.PropertyMap) []byte {
	var buf []byte
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(m)))
	buf = append(buf, tmp[:]...)
	for k, v := range m {
		buf = appendLenPrefixed(buf, []byte(k))
		buf = encodeValue(buf, v)
	}
	return buf
}

// DecodePropertyMap is the inverse of EncodePropertyMap.
func DecodePropertyMap(buf []byte) (types.PropertyMap, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("%w: truncated property map header", nverrors.ErrCorruptedStore)
	}
	count := int(binary.LittleEndian.Uint32(buf[0:4]))
	off := 4
	m := make(types.PropertyMap, count)
	for i := 0; i < count; i++ {
		kb, n, err := readLenPrefixed(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		off += n
		v, n2, err := decodeValue(buf[off:])
		if err != nil {
			return nil, 0, err
		}
		m[string(kb)] = v
		off += n2
	}
	return m, off, nil
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
