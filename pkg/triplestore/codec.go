package triplestore

import (
	"encoding/binary"
	"fmt"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/types"
)

const recordWidth = 24 // three little-endian uint64 AtomIDs

// encodeRecords serializes triples, already sorted in ordering's
// component order, into a flat fixed-width page payload.
func encodeRecords(ordering types.Ordering, triples []types.EncodedTriple) []byte {
	buf := make([]byte, len(triples)*recordWidth)
	for i, t := range triples {
		c := ordering.Components(t)
		off := i * recordWidth
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(c[0]))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], uint64(c[1]))
		binary.LittleEndian.PutUint64(buf[off+16:off+24], uint64(c[2]))
	}
	return buf
}

// decodeRecords is the inverse of encodeRecords, reconstituting canonical
// (S,P,O) triples from a page payload written in ordering's component order.
func decodeRecords(ordering types.Ordering, payload []byte) ([]types.EncodedTriple, error) {
	if len(payload)%recordWidth != 0 {
		return nil, fmt.Errorf("%w: page payload length %d not a multiple of record width", nverrors.ErrCorruptedStore, len(payload))
	}
	n := len(payload) / recordWidth
	out := make([]types.EncodedTriple, n)
	for i := 0; i < n; i++ {
		off := i * recordWidth
		var c [3]types.AtomID
		c[0] = types.AtomID(binary.LittleEndian.Uint64(payload[off : off+8]))
		c[1] = types.AtomID(binary.LittleEndian.Uint64(payload[off+8 : off+16]))
		c[2] = types.AtomID(binary.LittleEndian.Uint64(payload[off+16 : off+24]))
		out[i] = ordering.FromComponents(c)
	}
	return out, nil
}
