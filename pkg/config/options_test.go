package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsSatisfyValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	opts, err := Load(filepath.Join(dir, "nervusdb.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), opts)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nervusdb.yaml")
	contents := `
pageSize: 2000
rebuildIndexes: true
compression:
  codec: generic
  level: 5
stagingMode: lsm-lite
enablePersistentTxDedupe: true
maxRememberTxIds: 5000
experimental:
  cypher: true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2000, opts.PageSize)
	assert.True(t, opts.RebuildIndexes)
	assert.Equal(t, CodecGeneric, opts.Compression.Codec)
	assert.Equal(t, 5, opts.Compression.Level)
	assert.Equal(t, StagingLSMLite, opts.StagingMode)
	assert.True(t, opts.EnablePersistentTxDedupe)
	assert.Equal(t, 5000, opts.MaxRememberTxIds)
	assert.True(t, opts.Experimental.Cypher)
}

func TestLoadRejectsOutOfRangePageSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nervusdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pageSize: 20000\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownCodec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nervusdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("compression:\n  codec: lz4\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestMergeOverridesNonZeroFields(t *testing.T) {
	base := Defaults()
	override := Options{PageSize: 3000, Experimental: Experimental{Gremlin: true}}

	merged := base.Merge(override)
	assert.Equal(t, 3000, merged.PageSize)
	assert.True(t, merged.Experimental.Gremlin)
	assert.False(t, merged.Experimental.Cypher)
	assert.Equal(t, base.StagingMode, merged.StagingMode)
}
