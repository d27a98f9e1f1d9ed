package pages

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
)

var magic = [8]byte{'N', 'V', 'D', 'B', 'P', 'A', 'G', 'E'}

const (
	headerSize     = 20
	formatVersion  = 1
)

// Codec names a page payload compressor.
type Codec uint8

const (
	CodecNone    Codec = 0
	CodecGeneric Codec = 1
)

// ParseCodec maps the `compression.codec` open option string to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return CodecNone, nil
	case "generic":
		return CodecGeneric, nil
	default:
		return 0, fmt.Errorf("%w: unknown compression codec %q", nverrors.ErrInvalidInput, name)
	}
}

// ClampLevel clamps a requested compression level to the supported
// 1..11 range from the open-option table: zero or negative values
// default to 3, and values above 11 become 11.
func ClampLevel(level int) int {
	if level <= 0 {
		return 3
	}
	if level > 11 {
		return 11
	}
	return level
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// Encode compresses payload per codec/level and returns the full page
// file bytes (header + payload), ready to write atomically.
func Encode(codec Codec, level int, payload []byte) ([]byte, error) {
	var body []byte
	switch codec {
	case CodecNone:
		body = payload
	case CodecGeneric:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(level)))
		if err != nil {
			return nil, fmt.Errorf("pages: new zstd encoder: %w", err)
		}
		body = enc.EncodeAll(payload, nil)
		_ = enc.Close()
	default:
		return nil, fmt.Errorf("%w: unknown codec tag %d", nverrors.ErrInvalidInput, codec)
	}

	buf := make([]byte, headerSize+len(body))
	copy(buf[0:8], magic[:])
	buf[8] = formatVersion
	buf[9] = byte(codec)
	binary.LittleEndian.PutUint16(buf[10:12], 0)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[16:20], crc32.ChecksumIEEE(payload))
	copy(buf[headerSize:], body)
	return buf, nil
}

// Decode validates and decompresses a full page file's bytes, returning
// the original (uncompressed) payload.
func Decode(raw []byte) ([]byte, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: page shorter than header", nverrors.ErrCorruptedStore)
	}
	if !bytes.Equal(raw[0:8], magic[:]) {
		return nil, fmt.Errorf("%w: bad page magic", nverrors.ErrCorruptedStore)
	}
	if raw[8] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported page version %d", nverrors.ErrCorruptedStore, raw[8])
	}
	codec := Codec(raw[9])
	uncompressedLen := binary.LittleEndian.Uint32(raw[12:16])
	wantCRC := binary.LittleEndian.Uint32(raw[16:20])
	body := raw[headerSize:]

	var payload []byte
	switch codec {
	case CodecNone:
		payload = body
	case CodecGeneric:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("pages: new zstd decoder: %w", err)
		}
		defer dec.Close()
		payload, err = dec.DecodeAll(body, make([]byte, 0, uncompressedLen))
		if err != nil {
			return nil, fmt.Errorf("%w: decompressing page: %v", nverrors.ErrCorruptedStore, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown codec tag %d", nverrors.ErrCorruptedStore, codec)
	}

	if uint32(len(payload)) != uncompressedLen {
		return nil, fmt.Errorf("%w: page length mismatch: header says %d, got %d", nverrors.ErrCorruptedStore, uncompressedLen, len(payload))
	}
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return nil, fmt.Errorf("%w: page CRC mismatch", nverrors.ErrCorruptedStore)
	}
	return payload, nil
}

// WriteFile atomically writes a page file: payload is encoded, written
// to a temp file in the same directory, fsynced, then renamed into
// place so a reader never observes a partial page.
func WriteFile(path string, codec Codec, level int, payload []byte) error {
	encoded, err := Encode(codec, level, payload)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating page temp file: %v", nverrors.ErrIO, err)
	}
	if _, err := f.Write(encoded); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: writing page: %v", nverrors.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: fsyncing page: %v", nverrors.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: closing page: %v", nverrors.ErrIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: renaming page into place: %v", nverrors.ErrIO, err)
	}
	return nil
}

// ReadFile reads and validates a page file from disk.
func ReadFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %v", nverrors.ErrNotFound, err)
		}
		return nil, fmt.Errorf("%w: reading page %s: %v", nverrors.ErrIO, path, err)
	}
	return Decode(raw)
}

// Reader adapts ReadFile to io.Reader-free callers that already hold
// bytes (e.g. during testing without touching disk).
func Reader(raw []byte) (io.Reader, error) {
	payload, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(payload), nil
}
