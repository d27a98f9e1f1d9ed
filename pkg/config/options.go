package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nervusdb/nervusdb/pkg/nverrors"
)

// StagingMode selects the in-memory overlay a writer accumulates
// before a page is durable.
type StagingMode string

const (
	StagingDefault StagingMode = "default"
	StagingLSMLite StagingMode = "lsm-lite"
)

// Codec selects the page compression algorithm.
type Codec string

const (
	CodecNone    Codec = "none"
	CodecGeneric Codec = "generic"
)

// Compression configures the generic page codec and its level.
type Compression struct {
	Codec Codec `yaml:"codec"`
	Level int   `yaml:"level"`
}

// Experimental gates front ends that are not core functionality.
type Experimental struct {
	Cypher  bool `yaml:"cypher"`
	Gremlin bool `yaml:"gremlin"`
	GraphQL bool `yaml:"graphql"`
}

// Options is every tunable Open recognizes, defaulted by Defaults and
// optionally overridden by a nervusdb.yaml file plus a caller-supplied
// override value.
type Options struct {
	IndexDirectory            string       `yaml:"indexDirectory"`
	PageSize                  int          `yaml:"pageSize"`
	RebuildIndexes            bool         `yaml:"rebuildIndexes"`
	Compression               Compression  `yaml:"compression"`
	EnableLock                bool         `yaml:"enableLock"`
	RegisterReader            bool         `yaml:"registerReader"`
	StagingMode               StagingMode  `yaml:"stagingMode"`
	EnablePersistentTxDedupe  bool         `yaml:"enablePersistentTxDedupe"`
	MaxRememberTxIds          int          `yaml:"maxRememberTxIds"`
	Experimental              Experimental `yaml:"experimental"`
}

const (
	minPageSize = 1
	maxPageSize = 10000

	minRememberTxIds = 100
	maxRememberTxIds = 100000
)

// Defaults returns the option set Open uses when no file and no
// override supplies a value.
func Defaults() Options {
	return Options{
		PageSize:         1000,
		RegisterReader:   true,
		StagingMode:      StagingDefault,
		MaxRememberTxIds: 1000,
		Compression:      Compression{Codec: CodecNone, Level: 1},
	}
}

// Load reads an optional nervusdb.yaml at path on top of Defaults. A
// missing file is not an error; Load simply returns the defaults.
func Load(path string) (Options, error) {
	opts := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return Options{}, fmt.Errorf("%w: reading %s: %v", nverrors.ErrIO, path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("%w: parsing %s: %v", nverrors.ErrInvalidInput, path, err)
	}
	return opts, opts.Validate()
}

// Merge layers override on top of o, field by field: any non-zero
// field in override replaces o's corresponding field. A zero-valued
// bool override (false) cannot be distinguished from "not set" — this
// matches the teacher's own flag-default handling in cmd/warren, where
// an unset cobra bool flag and an explicitly-false one are the same
// value; callers needing "explicitly false" should set a pointer-typed
// field in a future revision, not a concern this pass needs.
func (o Options) Merge(override Options) Options {
	merged := o
	if override.IndexDirectory != "" {
		merged.IndexDirectory = override.IndexDirectory
	}
	if override.PageSize != 0 {
		merged.PageSize = override.PageSize
	}
	if override.RebuildIndexes {
		merged.RebuildIndexes = override.RebuildIndexes
	}
	if override.EnableLock {
		merged.EnableLock = true
	}
	if override.RegisterReader {
		merged.RegisterReader = true
	}
	if override.Compression.Codec != "" {
		merged.Compression.Codec = override.Compression.Codec
	}
	if override.Compression.Level != 0 {
		merged.Compression.Level = override.Compression.Level
	}
	if override.StagingMode != "" {
		merged.StagingMode = override.StagingMode
	}
	if override.EnablePersistentTxDedupe {
		merged.EnablePersistentTxDedupe = override.EnablePersistentTxDedupe
	}
	if override.MaxRememberTxIds != 0 {
		merged.MaxRememberTxIds = override.MaxRememberTxIds
	}
	if override.Experimental.Cypher {
		merged.Experimental.Cypher = true
	}
	if override.Experimental.Gremlin {
		merged.Experimental.Gremlin = true
	}
	if override.Experimental.GraphQL {
		merged.Experimental.GraphQL = true
	}
	return merged
}

// Validate rejects out-of-range values per spec §6 without clamping
// them: a pageSize outside [1,10000], a maxRememberTxIds outside
// [100,100000], and an unknown codec or staging mode are each an invalid
// input rather than a silent fallback.
func (o Options) Validate() error {
	if o.PageSize < minPageSize || o.PageSize > maxPageSize {
		return fmt.Errorf("%w: pageSize %d out of range [%d,%d]", nverrors.ErrInvalidInput, o.PageSize, minPageSize, maxPageSize)
	}
	if o.MaxRememberTxIds != 0 && (o.MaxRememberTxIds < minRememberTxIds || o.MaxRememberTxIds > maxRememberTxIds) {
		return fmt.Errorf("%w: maxRememberTxIds %d out of range [%d,%d]", nverrors.ErrInvalidInput, o.MaxRememberTxIds, minRememberTxIds, maxRememberTxIds)
	}
	switch o.Compression.Codec {
	case "", CodecNone, CodecGeneric:
	default:
		return fmt.Errorf("%w: unknown compression codec %q", nverrors.ErrInvalidInput, o.Compression.Codec)
	}
	if o.Compression.Codec == CodecGeneric && (o.Compression.Level < 1 || o.Compression.Level > 11) {
		return fmt.Errorf("%w: compression level %d out of range [1,11]", nverrors.ErrInvalidInput, o.Compression.Level)
	}
	switch o.StagingMode {
	case "", StagingDefault, StagingLSMLite:
	default:
		return fmt.Errorf("%w: unknown staging mode %q", nverrors.ErrInvalidInput, o.StagingMode)
	}
	return nil
}
