package custom

import (
	"os"
	"path/filepath"

	"github.com/levitateos/builder/internal/types"
)

// copyTree recursively copies src into dst through fsys, preserving
// symlinks literally. Mirrors leviso_elf::copy_dir_recursive.
func copyTree(fsys types.FS, src, dst string) error {
	info, err := fsys.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := fsys.Readlink(src)
		if err != nil {
			return err
		}
		if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if _, err := fsys.Lstat(dst); err == nil {
			return nil
		}
		return fsys.Symlink(target, dst)

	case info.IsDir():
		if err := fsys.MkdirAll(dst, 0755); err != nil {
			return err
		}
		entries, err := fsys.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyTree(fsys, filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil

	default:
		if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		data, err := fsys.ReadFile(src)
		if err != nil {
			return err
		}
		return fsys.WriteFile(dst, data, info.Mode())
	}
}

func pathExists(fsys types.FS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

func writeFile(fsys types.FS, path, content string, mode os.FileMode) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return fsys.WriteFile(path, []byte(content), mode)
}
