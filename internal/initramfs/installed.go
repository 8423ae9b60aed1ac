package initramfs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/atomicfile"
	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/types"
)

// InstalledBuilder produces the initramfs used by an installed system, by
// running dracut inside a bind-mounted chroot of the staging tree. Grounded
// on the teacher's chroot lifecycle (pkg/utils chroot helpers): bind mounts
// are torn down in reverse order no matter how the build exits.
type InstalledBuilder struct {
	Runner  types.Runner
	Mounter types.Mounter
	Logger  types.Logger
}

// bindMount is one entry of the chroot's bind-mount lifecycle. Optional
// mounts (efivars) are skipped with a log line when they cannot be bound,
// instead of failing the build on BIOS-only hosts.
type bindMount struct {
	source   string
	target   string
	optional bool
}

// Build runs `dracut --force --no-hostonly` inside a chroot of root,
// producing the image into the chroot's /tmp, then copies it out to
// destPath and removes the in-chroot copy.
func (b *InstalledBuilder) Build(root, kernelVersion, destPath string) error {
	mounts := []bindMount{
		{source: "/dev", target: filepath.Join(root, "dev")},
		{source: "/dev/pts", target: filepath.Join(root, "dev/pts")},
		{source: "/proc", target: filepath.Join(root, "proc")},
		{source: "/sys", target: filepath.Join(root, "sys")},
		{source: "/run", target: filepath.Join(root, "run")},
		{source: "/sys/firmware/efi/efivars", target: filepath.Join(root, "sys/firmware/efi/efivars"), optional: true},
	}

	var mounted []bindMount
	teardown := func() {
		for i := len(mounted) - 1; i >= 0; i-- {
			m := mounted[i]
			if err := b.Mounter.Unmount(m.target); err != nil {
				b.Logger.Warnf("unmounting chroot bind mount %s: %v", m.target, err)
			}
		}
	}
	defer teardown()

	for _, m := range mounts {
		if _, err := os.Stat(m.source); err != nil {
			b.Logger.Debugf("skipping non-existent host mount source %s", m.source)
			continue
		}
		if err := os.MkdirAll(m.target, 0755); err != nil {
			return errors.Wrapf(err, "creating chroot bind target %s", m.target)
		}
		if err := b.Mounter.Mount(m.source, m.target, "", []string{"bind"}); err != nil {
			if m.optional {
				b.Logger.Debugf("skipping optional chroot bind mount %s: %v", m.source, err)
				continue
			}
			return errors.Wrapf(err, "bind-mounting %s into chroot", m.source)
		}
		mounted = append(mounted, m)
	}

	imageInChroot := filepath.Join("/tmp", "initramfs-"+kernelVersion+".img")
	if _, _, err := b.Runner.Run("chroot", root, "dracut", "--force", "--no-hostonly",
		imageInChroot, kernelVersion); err != nil {
		return errors.Wrap(err, "running dracut inside chroot")
	}

	producedPath := filepath.Join(root, "tmp", "initramfs-"+kernelVersion+".img")
	err := atomicfile.Write(destPath, constants.InitramfsMinSizeBytes, func(tmp string) error {
		data, err := os.ReadFile(producedPath)
		if err != nil {
			return errors.Wrap(err, "reading dracut output from chroot")
		}
		return os.WriteFile(tmp, data, 0644)
	})
	if rmErr := os.Remove(producedPath); rmErr != nil && !os.IsNotExist(rmErr) {
		b.Logger.Warnf("removing in-chroot dracut image %s: %v", producedPath, rmErr)
	}
	return err
}
