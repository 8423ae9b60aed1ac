// Package rebuildcache implements the rebuild cache (component K): for each
// artifact (kernel, squashfs, initramfs, ISO) a fingerprint over its
// declared inputs is stored and compared against on the next run, so an
// unchanged build is skipped instead of redone.
//
// Grounded on pkg/snapshotter/btrfs.go's Backend-style split (a narrow
// storage interface behind a concrete implementation) adapted from
// btrfs-subvolume bookkeeping to artifact-fingerprint bookkeeping; the
// fingerprint concept itself follows original_source/'s cache module
// (conceptually — not retrieved verbatim in this pass, see DESIGN.md).
package rebuildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/types"
)

// Input is one declared input to an artifact's fingerprint: either a file
// whose content is hashed, or a literal string (a config value, an
// environment variable) folded in directly.
type Input struct {
	Path    string // hashed by content when non-empty
	Literal string // folded in directly when Path is empty
}

// FilePath declares a file-content input.
func FilePath(p string) Input { return Input{Path: p} }

// Literal declares a literal-value input (e.g. an environment variable or
// a config flag that affects the artifact).
func Literal(s string) Input { return Input{Literal: s} }

// Fingerprint computes a stable digest over a sorted, declared set of
// inputs. Two runs against the same inputs always return the same digest
// (spec.md §8 "ELF closure determinism" sibling property, applied here to
// cache fingerprints).
func Fingerprint(inputs []Input) (string, error) {
	sorted := make([]Input, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Path+sorted[i].Literal < sorted[j].Path+sorted[j].Literal
	})

	h := sha256.New()
	for _, in := range sorted {
		if in.Path != "" {
			f, err := os.Open(in.Path)
			if err != nil {
				return "", errors.Wrapf(err, "hashing fingerprint input %s", in.Path)
			}
			_, copyErr := io.Copy(h, f)
			f.Close()
			if copyErr != nil {
				return "", errors.Wrapf(copyErr, "hashing fingerprint input %s", in.Path)
			}
			fmt.Fprintf(h, "\x00path:%s", in.Path)
		} else {
			fmt.Fprintf(h, "\x00lit:%s", in.Literal)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Backend is the narrow fingerprint storage surface, analogous to the
// teacher's subvolumeBackend: one concrete implementation (SQLite) is
// swapped in by New, tests can swap in another.
type Backend interface {
	Load(artifact string) (fingerprint string, ok bool, err error)
	Store(artifact, fingerprint, runID string) error
	Close() error
}

// Cache decides, per artifact, whether a rebuild is needed.
type Cache struct {
	backend Backend
	logger  types.Logger
}

// New opens (creating if absent) the fingerprint store at
// output/.cache/fingerprints.db and returns a Cache backed by it.
func New(outputDir string, logger types.Logger) (*Cache, error) {
	backend, err := newSQLiteBackend(filepath.Join(outputDir, ".cache", "fingerprints.db"))
	if err != nil {
		return nil, errors.Wrap(err, "opening rebuild cache")
	}
	return &Cache{backend: backend, logger: logger}, nil
}

// NewWithBackend builds a Cache around an arbitrary Backend, for tests.
func NewWithBackend(backend Backend, logger types.Logger) *Cache {
	return &Cache{backend: backend, logger: logger}
}

func (c *Cache) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// IsStale reports whether artifact needs rebuilding: its fingerprint store
// entry is missing, differs from the current input digest, or outputPath
// does not exist. A quiescent, cache-hit artifact must still physically
// exist on disk — a cache entry alone never substitutes for a missing file.
func (c *Cache) IsStale(artifact, outputPath string, inputs []Input) (bool, string, error) {
	digest, err := Fingerprint(inputs)
	if err != nil {
		return true, "", err
	}

	if _, err := os.Stat(outputPath); err != nil {
		return true, digest, nil
	}

	stored, ok, err := c.backend.Load(artifact)
	if err != nil {
		return true, digest, err
	}
	if !ok {
		return true, digest, nil
	}
	return stored != digest, digest, nil
}

// MarkBuilt records digest as the new fingerprint for artifact, tagged with
// runID for log correlation (spec.md §9's RunID addition, SPEC_FULL.md §5).
func (c *Cache) MarkBuilt(artifact, digest string, runID uuid.UUID) error {
	if c.logger != nil {
		c.logger.Debugf("rebuild cache: recording %s fingerprint %s (run %s)", artifact, digest, runID)
	}
	return c.backend.Store(artifact, digest, runID.String())
}
