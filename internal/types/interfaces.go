/*
Copyright © 2022 - 2024 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package types carries the ambient interfaces and the per-build context
// threaded through every component of the pipeline.
package types

import (
	"io/fs"
	"os"
)

// Logger is the structured logger surface every package depends on. The
// concrete implementation wraps logrus.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// FS is the filesystem surface the executor's own ops and the custom-op
// handlers use for staging-tree mutations. It is narrow on purpose, so that
// code can be driven against a real or an in-memory tree in tests. The
// binary/library copier and the license tracker write with os.* directly.
type FS interface {
	MkdirAll(path string, perm os.FileMode) error
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	Readlink(name string) (string, error)
	Symlink(oldname, newname string) error
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
	Chmod(name string, mode os.FileMode) error
	Open(name string) (fs.File, error)
	Create(name string) (*os.File, error)
}

// Mounter is the narrow surface of k8s.io/mount-utils.Interface used to
// drive chroot bind mounts for the installed-system initramfs builder.
type Mounter interface {
	Mount(source, target, fstype string, options []string) error
	Unmount(target string) error
	IsLikelyNotMountPoint(file string) (bool, error)
}

// Runner centralizes every external-tool invocation (§9 "Subprocess
// discipline"): argument list, no shell interpolation, captured
// stdout/stderr, an error that already carries remediation text.
type Runner interface {
	Run(name string, args ...string) (stdout string, stderr string, err error)
	RunWithDir(dir, name string, args ...string) (stdout string, stderr string, err error)
	LookPath(name string) (string, error)
}
