package manifest

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
	"github.com/nervusdb/nervusdb/pkg/pages"
	"github.com/nervusdb/nervusdb/pkg/types"
)

// Manifest is the complete inventory of live page files for one epoch.
type Manifest struct {
	Epoch       uint64
	Triples     map[types.Ordering][]pages.Descriptor
	NodeProps   pages.Descriptor
	EdgeProps   pages.Descriptor
	Labels      pages.Descriptor
	DictDiscard int64 // bytes truncated from the dictionary log as of this epoch, for diagnostics
}

func manifestPath(dir string, epoch uint64) string {
	return filepath.Join(dir, fmt.Sprintf("manifest.%d", epoch))
}

func currentPath(dir string) string {
	return filepath.Join(dir, "CURRENT")
}

// Write serializes m to manifest.<epoch> under dir via temp-file+fsync+
// rename, then atomically republishes CURRENT to point at it.
func Write(dir string, m Manifest) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("%w: encoding manifest: %v", nverrors.ErrIO, err)
	}

	path := manifestPath(dir, m.Epoch)
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("manifest: writing epoch %d: %w", m.Epoch, err)
	}

	if err := writeAtomic(currentPath(dir), []byte(filepath.Base(path))); err != nil {
		return fmt.Errorf("manifest: publishing CURRENT for epoch %d: %w", m.Epoch, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", nverrors.ErrIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: writing temp file: %v", nverrors.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: fsyncing temp file: %v", nverrors.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: closing temp file: %v", nverrors.ErrIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: renaming into place: %v", nverrors.ErrIO, err)
	}
	return nil
}

// Current reads CURRENT and the manifest it names. A missing CURRENT
// (a brand-new database) returns ErrNotFound so the caller can fall
// back to an empty epoch 0.
func Current(dir string) (Manifest, error) {
	nameBytes, err := os.ReadFile(currentPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("%w: no CURRENT pointer in %s", nverrors.ErrNotFound, dir)
		}
		return Manifest{}, fmt.Errorf("%w: reading CURRENT: %v", nverrors.ErrIO, err)
	}

	m, err := readManifestFile(filepath.Join(dir, string(nameBytes)))
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: reading manifest named by CURRENT: %v", nverrors.ErrCorruptedStore, err)
	}
	return m, nil
}

// ReadEpoch loads manifest.<epoch> directly, bypassing CURRENT. Used by
// compaction to inspect a superseded epoch's page inventory before
// deleting it.
func ReadEpoch(dir string, epoch uint64) (Manifest, error) {
	return readManifestFile(manifestPath(dir, epoch))
}

func readManifestFile(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("%w: %v", nverrors.ErrNotFound, err)
		}
		return Manifest{}, fmt.Errorf("%w: reading manifest file: %v", nverrors.ErrIO, err)
	}
	var m Manifest
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("%w: decoding manifest: %v", nverrors.ErrCorruptedStore, err)
	}
	return m, nil
}

// ListEpochs returns every epoch with a manifest.<epoch> file on disk,
// ascending, for compaction's GC sweep.
func ListEpochs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: listing manifest directory: %v", nverrors.ErrIO, err)
	}
	var epochs []uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "manifest.") {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(name, "manifest."), 10, 64)
		if err != nil {
			continue
		}
		epochs = append(epochs, n)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	return epochs, nil
}

// RemoveEpoch deletes manifest.<epoch>, the superseded-manifest half of
// a GC cycle (page/prop/label files are removed separately by the
// caller, which knows which paths that manifest referenced).
func RemoveEpoch(dir string, epoch uint64) error {
	if err := os.Remove(manifestPath(dir, epoch)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing manifest %d: %v", nverrors.ErrIO, epoch, err)
	}
	return nil
}
