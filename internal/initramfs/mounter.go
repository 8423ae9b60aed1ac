package initramfs

import (
	"os/exec"

	kmount "k8s.io/mount-utils"

	"github.com/levitateos/builder/internal/types"
)

// NewMounter locates the host's `mount` binary and returns a
// k8s.io/mount-utils-backed types.Mounter, the same construction the
// teacher uses ahead of its chroot work: `exec.LookPath("mount")` then
// `mount.New(path)`.
func NewMounter() (types.Mounter, error) {
	path, err := exec.LookPath("mount")
	if err != nil {
		return nil, err
	}
	return kmount.New(path), nil
}
