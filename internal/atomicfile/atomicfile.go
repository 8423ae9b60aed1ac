// Package atomicfile implements the atomic-rename discipline used by every
// artifact producer (squashfs, initramfs, ISO, checksum): write to
// "<final>.tmp", verify, then rename to the final name; on failure remove
// the temporary. A failed build must never disturb an existing artifact
// (spec.md §4.8, §8 "atomicity contract").
package atomicfile

import (
	"os"

	"github.com/pkg/errors"
)

// Write calls fn with the path "<final>.tmp", then — if fn succeeds and the
// resulting file satisfies minSize — renames it to final. On any failure
// the temporary is removed and final is left untouched.
func Write(final string, minSize int64, fn func(tmpPath string) error) (err error) {
	tmp := final + ".tmp"

	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = fn(tmp); err != nil {
		return errors.Wrapf(err, "building %s", tmp)
	}

	info, statErr := os.Stat(tmp)
	if statErr != nil {
		err = errors.Wrapf(statErr, "statting %s after build", tmp)
		return err
	}
	if info.Size() < minSize {
		err = errors.Errorf("%s is only %d bytes (want >= %d); build produced an empty/aborted artifact", tmp, info.Size(), minSize)
		return err
	}

	if err = os.Rename(tmp, final); err != nil {
		return errors.Wrapf(err, "renaming %s to %s", tmp, final)
	}
	return nil
}
