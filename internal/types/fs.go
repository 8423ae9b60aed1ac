package types

import (
	"io/fs"
	"os"

	"github.com/twpayne/go-vfs/v4"
)

// osFS adapts github.com/twpayne/go-vfs/v4's OSFS to the narrower FS
// interface used by this pipeline. go-vfs is the teacher's filesystem
// abstraction (pkg/types.Config.Fs); kept for the same reason the teacher
// keeps it — every staging mutation goes through one seam that tests can
// swap for an in-memory tree.
type osFS struct {
	vfs.FS
}

// NewFS returns the real, host-backed FS implementation.
func NewFS() FS {
	return &osFS{FS: vfs.OSFS}
}

func (o *osFS) MkdirAll(path string, perm os.FileMode) error {
	return vfs.MkdirAll(o.FS, path, perm)
}

func (o *osFS) Stat(name string) (fs.FileInfo, error) {
	return o.FS.Stat(name)
}

func (o *osFS) Lstat(name string) (fs.FileInfo, error) {
	return o.FS.Lstat(name)
}

func (o *osFS) ReadFile(name string) ([]byte, error) {
	return o.FS.ReadFile(name)
}

func (o *osFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return o.FS.WriteFile(name, data, perm)
}

func (o *osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return o.FS.ReadDir(name)
}

func (o *osFS) Readlink(name string) (string, error) {
	return o.FS.Readlink(name)
}

func (o *osFS) Symlink(oldname, newname string) error {
	return o.FS.Symlink(oldname, newname)
}

func (o *osFS) Remove(name string) error {
	return o.FS.Remove(name)
}

func (o *osFS) RemoveAll(path string) error {
	return o.FS.RemoveAll(path)
}

func (o *osFS) Rename(oldpath, newpath string) error {
	return o.FS.Rename(oldpath, newpath)
}

func (o *osFS) Chmod(name string, mode os.FileMode) error {
	return o.FS.Chmod(name, mode)
}

func (o *osFS) Open(name string) (fs.File, error) {
	return o.FS.Open(name)
}

func (o *osFS) Create(name string) (*os.File, error) {
	return os.Create(name)
}
