package walog

import (
	"encoding/binary"
	"fmt"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/propstore"
	"github.com/nervusdb/nervusdb/pkg/types"
)

func appendLenPrefixed(buf []byte, b []byte) []byte {
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

// encodeRecord serializes rec's body (everything after the outer
// length+CRC framing log.go adds).
func encodeRecord(rec Record) []byte {
	buf := []byte{byte(rec.Kind)}
	var batchID [8]byte
	binary.LittleEndian.PutUint64(batchID[:], rec.BatchID)
	buf = append(buf, batchID[:]...)

	switch rec.Kind {
	case KindBegin:
		// no extra payload; parent/child nesting is tracked in memory
		// by the caller via BatchID assignment order.
	case KindAddTriple, KindDelTriple:
		buf = appendTripleBytes(buf, rec.Triple)
	case KindSetNodeProps:
		var id [8]byte
		binary.LittleEndian.PutUint64(id[:], uint64(rec.NodeID))
		buf = append(buf, id[:]...)
		buf = append(buf, propstore.EncodePropertyMap(rec.Props)...)
	case KindSetEdgeProps:
		buf = appendTripleBytes(buf, rec.Triple)
		buf = append(buf, propstore.EncodePropertyMap(rec.Props)...)
	case KindSetLabels:
		var id [8]byte
		binary.LittleEndian.PutUint64(id[:], uint64(rec.NodeID))
		buf = append(buf, id[:]...)
		var count [4]byte
		binary.LittleEndian.PutUint32(count[:], uint32(len(rec.Labels)))
		buf = append(buf, count[:]...)
		for _, l := range rec.Labels {
			buf = appendLenPrefixed(buf, []byte(l))
		}
	case KindCommit:
		flags := byte(0)
		if rec.Durable {
			flags |= 1
		}
		if rec.Dup {
			flags |= 2
		}
		buf = append(buf, flags)
		buf = appendLenPrefixed(buf, []byte(rec.TxID))
	case KindAbort:
		// no extra payload
	}
	return buf
}

func appendTripleBytes(buf []byte, t types.EncodedTriple) []byte {
	var tmp [24]byte
	binary.LittleEndian.PutUint64(tmp[0:8], uint64(t.S))
	binary.LittleEndian.PutUint64(tmp[8:16], uint64(t.P))
	binary.LittleEndian.PutUint64(tmp[16:24], uint64(t.O))
	return append(buf, tmp[:]...)
}

func readTripleBytes(buf []byte) (types.EncodedTriple, error) {
	if len(buf) < 24 {
		return types.EncodedTriple{}, fmt.Errorf("%w: truncated triple", nverrors.ErrCorruptedStore)
	}
	return types.EncodedTriple{
		S: types.AtomID(binary.LittleEndian.Uint64(buf[0:8])),
		P: types.AtomID(binary.LittleEndian.Uint64(buf[8:16])),
		O: types.AtomID(binary.LittleEndian.Uint64(buf[16:24])),
	}, nil
}

// decodeRecord is the inverse of encodeRecord.
func decodeRecord(buf []byte) (Record, error) {
	if len(buf) < 9 {
		return Record{}, fmt.Errorf("%w: truncated record header", nverrors.ErrCorruptedStore)
	}
	rec := Record{Kind: Kind(buf[0]), BatchID: binary.LittleEndian.Uint64(buf[1:9])}
	off := 9

	switch rec.Kind {
	case KindBegin, KindAbort:
		// no extra payload
	case KindAddTriple, KindDelTriple:
		t, err := readTripleBytes(buf[off:])
		if err != nil {
			return Record{}, err
		}
		rec.Triple = t
	case KindSetNodeProps:
		if off+8 > len(buf) {
			return Record{}, fmt.Errorf("%w: truncated SetNodeProps record", nverrors.ErrCorruptedStore)
		}
		rec.NodeID = types.AtomID(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
		props, _, err := propstore.DecodePropertyMap(buf[off:])
		if err != nil {
			return Record{}, err
		}
		rec.Props = props
	case KindSetEdgeProps:
		t, err := readTripleBytes(buf[off:])
		if err != nil {
			return Record{}, err
		}
		rec.Triple = t
		off += 24
		props, _, err := propstore.DecodePropertyMap(buf[off:])
		if err != nil {
			return Record{}, err
		}
		rec.Props = props
	case KindSetLabels:
		if off+12 > len(buf) {
			return Record{}, fmt.Errorf("%w: truncated SetLabels record", nverrors.ErrCorruptedStore)
		}
		rec.NodeID = types.AtomID(binary.LittleEndian.Uint64(buf[off : off+8]))
		off += 8
		count := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		labels := make([]string, count)
		for i := 0; i < count; i++ {
			b, n, err := readLenPrefixed(buf[off:])
			if err != nil {
				return Record{}, err
			}
			labels[i] = string(b)
			off += n
		}
		rec.Labels = labels
	case KindCommit:
		if off+1 > len(buf) {
			return Record{}, fmt.Errorf("%w: truncated Commit record", nverrors.ErrCorruptedStore)
		}
		flags := buf[off]
		rec.Durable = flags&1 != 0
		rec.Dup = flags&2 != 0
		off++
		txID, _, err := readLenPrefixed(buf[off:])
		if err != nil {
			return Record{}, err
		}
		rec.TxID = string(txID)
	default:
		return Record{}, fmt.Errorf("%w: unknown WAL record kind %d", nverrors.ErrCorruptedStore, rec.Kind)
	}
	return rec, nil
}
