package licenses

// binaryPackages and libraryPackages are the static binary/library → source
// package tables. spec.md §9 notes the original's table
// (distro_spec::shared::licenses) is external and not included; this is a
// re-derivation covering the FHS package splits the registry actually
// copies from, extendable by reimplementers.
var binaryPackages = map[string]string{
	"ls": "coreutils", "cp": "coreutils", "mv": "coreutils", "rm": "coreutils",
	"mkdir": "coreutils", "rmdir": "coreutils", "cat": "coreutils", "touch": "coreutils",
	"chmod": "coreutils", "chown": "coreutils", "chgrp": "coreutils", "ln": "coreutils",
	"readlink": "coreutils", "realpath": "coreutils", "df": "coreutils", "du": "coreutils",
	"stat": "coreutils", "sync": "coreutils", "sleep": "coreutils", "echo": "coreutils",
	"printf": "coreutils", "env": "coreutils", "true": "coreutils", "false": "coreutils",
	"pwd": "coreutils", "dirname": "coreutils", "basename": "coreutils", "cut": "coreutils",
	"sort": "coreutils", "uniq": "coreutils", "head": "coreutils", "tail": "coreutils",
	"wc": "coreutils", "tr": "coreutils", "tee": "coreutils", "date": "coreutils",
	"uname": "coreutils", "id": "coreutils", "whoami": "coreutils", "hostname": "coreutils",
	"dd": "coreutils", "mktemp": "coreutils",

	"bash": "bash", "sh": "bash",

	"mount": "util-linux", "umount": "util-linux", "losetup": "util-linux",
	"blkid": "util-linux", "lsblk": "util-linux", "findmnt": "util-linux",
	"fdisk": "util-linux", "sfdisk": "util-linux", "mkswap": "util-linux",
	"swapon": "util-linux", "swapoff": "util-linux", "kill": "util-linux",
	"login": "util-linux", "su": "util-linux", "getty": "util-linux",
	"agetty": "util-linux", "more": "util-linux", "less": "util-linux",
	"column": "util-linux", "fsck": "util-linux", "mkfs": "util-linux",

	"shutdown": "systemd", "reboot": "systemd", "poweroff": "systemd", "halt": "systemd",
	"systemctl": "systemd", "journalctl": "systemd", "udevadm": "systemd",
	"loginctl": "systemd", "hostnamectl": "systemd", "timedatectl": "systemd",
	"systemd-journald": "systemd", "systemd-logind": "systemd", "systemd-udevd": "systemd",
	"systemd-networkd": "systemd", "systemd-resolved": "systemd", "systemd-tmpfiles": "systemd",
	"systemd-sysctl": "systemd", "systemd-modules-load": "systemd", "systemd-fsck": "systemd",
	"systemd-random-seed": "systemd",

	"grep": "grep", "egrep": "grep", "fgrep": "grep",
	"sed": "sed",
	"gawk": "gawk", "awk": "gawk",

	"ps": "procps-ng", "top": "procps-ng", "pgrep": "procps-ng", "pkill": "procps-ng",
	"free": "procps-ng", "uptime": "procps-ng",

	"ping": "iputils", "curl": "curl", "ip": "iproute2", "route": "iproute2",

	"dbus-broker": "dbus-broker", "dbus-send": "dbus", "dbus-monitor": "dbus",

	"chronyd": "chrony", "chronyc": "chrony",

	"ssh": "openssh", "sshd": "openssh", "ssh-keygen": "openssh", "scp": "openssh", "sftp": "openssh",

	"sudo": "sudo",

	"useradd": "shadow-utils", "userdel": "shadow-utils", "usermod": "shadow-utils",
	"groupadd": "shadow-utils", "groupdel": "shadow-utils", "groupmod": "shadow-utils",
	"passwd": "shadow-utils", "chsh": "shadow-utils", "chfn": "shadow-utils",

	"dracut": "dracut",
}

var libraryPackages = map[string]string{
	"libc.so.6": "glibc", "libm.so.6": "glibc", "libpthread.so.0": "glibc",
	"libdl.so.2": "glibc", "librt.so.1": "glibc", "ld-linux-x86-64.so.2": "glibc",

	"libpam.so.0": "pam", "libpam_misc.so.0": "pam", "sudoers.so": "sudo",
	"group_file.so": "pam", "pam.so": "pam",

	"libsystemd.so.0": "systemd", "libsystemd-shared.so": "systemd",
	"libudev.so.1": "systemd",

	"libdbus-1.so.3": "dbus",

	"libcrypto.so.3": "openssl", "libssl.so.3": "openssl",
	"libz.so.1": "zlib",
	"libzstd.so.1": "zstd",
	"liblz4.so.1": "lz4",
	"libxz.so.5": "xz",
	"liblzma.so.5": "xz",
	"libcrypt.so.1": "libxcrypt",
	"libcap.so.2": "libcap",
	"libselinux.so.1": "libselinux",
	"libpcre2-8.so.0": "pcre2",
	"libreadline.so.8": "readline",
	"libncursesw.so.6": "ncurses",
	"libtinfo.so.6": "ncurses",
	"libmount.so.1": "util-linux",
	"libblkid.so.1": "util-linux",
	"libuuid.so.1": "util-linux",
	"libkmod.so.2": "kmod",
}

// PackageForBinary resolves a binary basename to its source package.
func PackageForBinary(name string) (string, bool) {
	pkg, ok := binaryPackages[name]
	return pkg, ok
}

// PackageForLibrary resolves a shared-library basename to its source package.
func PackageForLibrary(name string) (string, bool) {
	pkg, ok := libraryPackages[name]
	return pkg, ok
}
