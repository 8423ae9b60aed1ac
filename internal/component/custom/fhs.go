package custom

import (
	"os"
	"path/filepath"

	"github.com/levitateos/builder/internal/types"
)

// mergedUsrLinks are the merged-/usr compatibility symlinks every directory
// on this list must resolve to its usr/ counterpart.
var mergedUsrLinks = []struct {
	link, target string
}{
	{"bin", "usr/bin"},
	{"sbin", "usr/sbin"},
	{"lib", "usr/lib"},
	{"lib64", "usr/lib64"},
}

// createFhsSymlinks lays down the merged-/usr compatibility symlinks plus
// /var/run, /var/lock, and /usr/bin/sh.
func createFhsSymlinks(ctx *types.BuildContext) error {
	ctx.Logger.Infof("creating FHS symlinks")

	for _, rel := range []struct{ link, target string }{
		{"var/run", "/run"},
		{"var/lock", "/run/lock"},
	} {
		path := filepath.Join(ctx.Staging, rel.link)
		if _, err := ctx.FS.Lstat(path); err != nil {
			if err := ctx.FS.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := ctx.FS.Symlink(rel.target, path); err != nil {
				return err
			}
		}
	}

	for _, l := range mergedUsrLinks {
		path := filepath.Join(ctx.Staging, l.link)
		info, statErr := ctx.FS.Lstat(path)

		exists := statErr == nil
		isSymlink := exists && info.Mode()&os.ModeSymlink != 0

		if exists && !isSymlink {
			if err := ctx.FS.RemoveAll(path); err != nil {
				return err
			}
			exists = false
		}
		if !exists {
			if err := ctx.FS.Symlink(l.target, path); err != nil {
				return err
			}
		}
	}

	shLink := filepath.Join(ctx.Staging, "usr/bin/sh")
	if _, err := ctx.FS.Lstat(shLink); err != nil {
		if err := ctx.FS.Symlink("bash", shLink); err != nil {
			return err
		}
	}

	ctx.Logger.Infof("created essential symlinks")
	return nil
}
