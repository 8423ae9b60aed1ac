// Package registry holds the static, phase-ordered list of components that
// make up a LevitateOS rootfs. The list itself is DATA — see spec.md §2/§9:
// "the Rust original expresses components... as enumerations... a faithful
// rewrite uses a tagged-variant type... do not re-introduce dynamic
// reflection." Validate() enforces the two registry invariants from
// spec.md §8: phase order and component-name uniqueness.
package registry

import (
	"fmt"

	c "github.com/levitateos/builder/internal/component"
)

// All returns the full, ordered component list. Declaration order within a
// phase is authoritative and preserved by the executor.
func All() []c.Installable {
	return []c.Installable{
		// ---- Filesystem ----
		c.New("fhs-tree", c.PhaseFilesystem,
			c.Dirs(
				"usr/bin", "usr/sbin", "usr/lib", "usr/lib64", "usr/libexec",
				"usr/share", "usr/share/licenses", "usr/share/doc",
				"etc", "etc/systemd/system", "var", "var/log", "var/lib",
				"var/cache", "var/tmp", "root", "home", "tmp",
				"proc", "sys", "dev", "run", "mnt", "media", "opt", "srv",
			),
			c.Custom(c.CreateFhsSymlinks),
		),

		// ---- Binaries ----
		c.New("bash-and-coreutils", c.PhaseBinaries,
			c.OpBash{},
			c.Bins("ls", "cp", "mv", "rm", "mkdir", "rmdir", "cat", "touch",
				"chmod", "chown", "chgrp", "ln", "readlink", "realpath",
				"df", "du", "stat", "sync", "sleep", "echo", "printf",
				"env", "true", "false", "pwd", "dirname", "basename",
				"cut", "sort", "uniq", "head", "tail", "wc", "tr", "tee",
				"date", "uname", "id", "whoami", "hostname", "dd", "mktemp"),
		),
		c.New("util-linux", c.PhaseBinaries,
			c.Bins("mount", "umount", "losetup", "blkid", "lsblk", "findmnt",
				"fdisk", "sfdisk", "mkswap", "swapon", "swapoff", "kill",
				"login", "su", "getty", "agetty", "more", "less", "column"),
			c.Sbins("fsck", "mkfs", "shutdown", "reboot", "poweroff", "halt"),
		),
		c.New("grep-sed-gawk", c.PhaseBinaries,
			c.Bins("grep", "egrep", "fgrep", "sed", "gawk", "awk"),
		),
		c.New("process-tools", c.PhaseBinaries,
			c.Bins("ps", "top", "kill", "pgrep", "pkill", "free", "uptime"),
		),
		c.New("network-tools", c.PhaseBinaries,
			c.Bins("ping", "curl"),
			c.Sbins("ip", "route"),
		),

		// ---- Systemd ----
		c.New("systemd-core", c.PhaseSystemd,
			c.OpSystemdBinaries{Helpers: []string{
				"systemd-journald", "systemd-logind", "systemd-udevd",
				"systemd-networkd", "systemd-resolved", "systemd-tmpfiles",
				"systemd-sysctl", "systemd-modules-load", "systemd-fsck",
				"systemd-random-seed",
			}},
			c.Units("systemd-journald.service", "systemd-udevd.service",
				"systemd-tmpfiles-setup.service", "systemd-sysctl.service",
				"systemd-modules-load.service", "sysinit.target", "basic.target"),
			c.EnableSysinit("systemd-journald.service"),
			c.EnableSysinit("systemd-udevd.service"),
			c.EnableSysinit("systemd-tmpfiles-setup.service"),
			c.Sbins("systemctl", "journalctl", "udevadm", "loginctl", "hostnamectl", "timedatectl"),
		),
		c.New("getty", c.PhaseSystemd,
			c.Units("getty@.service", "serial-getty@.service"),
			c.EnableGetty("getty@tty1.service"),
		),
		c.New("udev-helpers", c.PhaseSystemd,
			c.OpUdevHelpers{Names: []string{"ata_id", "scsi_id", "cdrom_id", "v4l_id"}},
		),

		// ---- D-Bus ----
		c.New("dbus", c.PhaseDbus,
			c.Dir("run/dbus"),
			c.Bins("dbus-broker", "dbus-send", "dbus-monitor"),
			c.OpDbusSymlinks{Names: []string{"org.freedesktop.timedate1.service"}},
			c.Units("dbus-broker.service", "dbus.socket"),
			c.EnableSockets("dbus.socket"),
		),

		// ---- Services ----
		c.New("networkd", c.PhaseServices,
			c.Units("systemd-networkd.service", "systemd-resolved.service"),
			c.EnableMultiUser("systemd-networkd.service"),
			c.EnableMultiUser("systemd-resolved.service"),
		),
		c.New("chrony", c.PhaseServices,
			c.Bins("chronyd", "chronyc"),
			c.Units("chronyd.service"),
			c.EnableMultiUser("chronyd.service"),
		),
		c.New("openssh", c.PhaseServices,
			c.Sbins("sshd"),
			c.Bins("ssh", "ssh-keygen", "scp", "sftp"),
			c.Units("sshd.service"),
			c.EnableMultiUser("sshd.service"),
			c.Custom(c.CreateSshHostKeys),
		),
		c.New("pam-and-sudo", c.PhaseServices,
			c.OpSudoLibs{Libs: []string{"sudoers.so", "group_file.so", "pam.so"}},
			c.Bins("sudo"),
			c.Custom(c.CreatePamFiles),
			c.Custom(c.CreateSecurityConfig),
		),
		c.New("shadow-utils", c.PhaseServices,
			c.Sbins("useradd", "userdel", "usermod", "groupadd", "groupdel", "groupmod"),
			c.Bins("passwd", "chsh", "chfn"),
			c.User("root", 0, 0, "/root", "/usr/bin/bash"),
			c.Group("root", 0),
			c.Group("wheel", 10),
			c.Group("systemd-journal", 190),
		),

		// ---- Config ----
		c.New("etc-files", c.PhaseConfig,
			c.Custom(c.CreateEtcFiles),
		),
		c.New("locale-and-timezone", c.PhaseConfig,
			c.Custom(c.CopyTimezoneData),
			c.Custom(c.CopyLocales),
			c.Custom(c.CopyKeymaps),
		),
		c.New("motd", c.PhaseConfig,
			c.Custom(c.CreateWelcomeMessage),
		),

		// ---- Packages ----
		c.New("dracut", c.PhasePackages,
			c.Sbins("dracut"),
			c.Dir("usr/lib/dracut/modules.d"),
		),
		c.New("recipe-tools", c.PhasePackages,
			c.Custom(c.CopyRecipe),
			c.Custom(c.SetupRecipeConfig),
			c.Custom(c.InstallTools),
			c.Custom(c.CopyDocsTui),
		),

		// ---- Firmware ----
		c.New("firmware", c.PhaseFirmware,
			c.Custom(c.CopyAllFirmware),
			c.Custom(c.CopyWifiFirmware),
			c.Custom(c.CopyModules),
		),

		// ---- Final ----
		c.New("live-overlay", c.PhaseFinal,
			c.Custom(c.CreateLiveOverlay),
			c.Custom(c.SetupLiveSystemdConfigs),
		),
		c.New("systemd-boot", c.PhaseFinal,
			c.Custom(c.CopySystemdBootEfi),
		),
		c.New("security-hardening", c.PhaseFinal,
			c.Custom(c.DisableSelinux),
		),
	}
}

// Validate enforces the two registry invariants (spec.md §8): the list must
// be non-decreasing in phase, and every name must be unique.
func Validate(list []c.Installable) error {
	seen := make(map[string]struct{}, len(list))
	var prev c.Phase
	for i, item := range list {
		if _, dup := seen[item.Name()]; dup {
			return fmt.Errorf("registry: duplicate component name %q", item.Name())
		}
		seen[item.Name()] = struct{}{}

		if i > 0 && item.Phase() < prev {
			return fmt.Errorf("registry: phase ordering violated at %q: phase %s precedes previous phase %s",
				item.Name(), item.Phase(), prev)
		}
		prev = item.Phase()
	}
	return nil
}
