package custom

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/levitateos/builder/internal/types"
)

const passwdContent = `root:x:0:0:root:/root:/bin/bash
bin:x:1:1:bin:/:/sbin/nologin
daemon:x:2:2:daemon:/:/sbin/nologin
nobody:x:65534:65534:Kernel Overflow User:/:/sbin/nologin
`

const shadowContent = `root:!:19000:0:99999:7:::
bin:!:19000:0:99999:7:::
daemon:!:19000:0:99999:7:::
nobody:!:19000:0:99999:7:::
`

const groupContent = `root:x:0:
bin:x:1:
daemon:x:2:
sys:x:3:
wheel:x:10:
nobody:x:65534:
`

const gshadowContent = `root:::
bin:::
daemon:::
sys:::
wheel:::
nobody:::
`

const fstabContent = `# <file system> <mount point> <type> <options> <dump> <pass>
`

const loginDefsContent = `UID_MIN 1000
UID_MAX 60000
GID_MIN 1000
GID_MAX 60000
CREATE_HOME yes
ENCRYPT_METHOD SHA512
`

const sudoersContent = `Defaults    env_reset
Defaults    secure_path = /usr/sbin:/usr/bin
root    ALL=(ALL)    ALL
%wheel  ALL=(ALL)    ALL
`

const sudoConfContent = `Set disable_coredump false
`

const profileContent = `for i in /etc/profile.d/*.sh; do
    [ -r "$i" ] && . "$i"
done
unset i
`

const bashrcContent = `[ -z "$PS1" ] && return
PS1='[\u@\h \W]\$ '
`

const nsswitchContent = `passwd:     files systemd
group:      files systemd
shadow:     files
hosts:      files mdns4_minimal [NOTFOUND=return] dns
`

const shellsContent = `/bin/sh
/bin/bash
`

const xdgShContent = `export XDG_CONFIG_HOME="$HOME/.config"
export XDG_CACHE_HOME="$HOME/.cache"
export XDG_DATA_HOME="$HOME/.local/share"
export XDG_STATE_HOME="$HOME/.local/state"
`

const hostsContent = `127.0.0.1   localhost
::1         localhost
`

const adjtimeContent = `0.0 0 0.0
0
UTC
`

const localeConfContent = `LANG=en_US.UTF-8
`

const vconsoleConfContent = `KEYMAP=us
FONT=latarcyrheb-sun16
`

const skelBashrcContent = bashrcContent
const skelBashProfileContent = `[ -f ~/.bashrc ] && . ~/.bashrc
`
const rootBashrcContent = bashrcContent
const rootBashProfileContent = skelBashProfileContent

func createEtcFiles(ctx *types.BuildContext) error {
	ctx.Logger.Infof("creating /etc configuration files")

	if err := createPasswdFiles(ctx); err != nil {
		return err
	}
	if err := createSystemIdentity(ctx); err != nil {
		return err
	}
	if err := createFilesystemConfig(ctx); err != nil {
		return err
	}
	if err := createAuthConfig(ctx); err != nil {
		return err
	}
	if err := createLocaleConfig(ctx); err != nil {
		return err
	}
	if err := createNetworkConfig(ctx); err != nil {
		return err
	}
	if err := createShellConfig(ctx); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(ctx.Staging, "etc/nsswitch.conf"), nsswitchContent, 0644); err != nil {
		return err
	}
	if err := createTmpfilesConfigs(ctx); err != nil {
		return err
	}
	return copyLdSoConf(ctx)
}

func createPasswdFiles(ctx *types.BuildContext) error {
	etc := filepath.Join(ctx.Staging, "etc")
	if err := writeFile(ctx.FS, filepath.Join(etc, "passwd"), passwdContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "shadow"), shadowContent, 0600); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "group"), groupContent, 0644); err != nil {
		return err
	}
	return writeFile(ctx.FS, filepath.Join(etc, "gshadow"), gshadowContent, 0600)
}

func createSystemIdentity(ctx *types.BuildContext) error {
	etc := filepath.Join(ctx.Staging, "etc")

	name := envOr("OS_NAME", "LevitateOS")
	id := envOr("OS_ID", "levitateos")
	idLike := envOr("OS_ID_LIKE", "fedora")
	version := envOr("OS_VERSION", "1.0")
	versionID := envOr("OS_VERSION_ID", "1")
	homeURL := envOr("OS_HOME_URL", "https://levitateos.org")
	bugURL := envOr("OS_BUG_REPORT_URL", "https://github.com/levitateos/levitateos/issues")
	hostname := envOr("OS_HOSTNAME", id)

	if err := writeFile(ctx.FS, filepath.Join(etc, "hostname"), hostname+"\n", 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "machine-id"), "", 0644); err != nil {
		return err
	}

	osRelease := fmt.Sprintf(
		"NAME=%q\nID=%s\nID_LIKE=%s\nVERSION=%q\nVERSION_ID=%s\nPRETTY_NAME=%q\nHOME_URL=%q\nBUG_REPORT_URL=%q\n",
		name, id, idLike, version, versionID, name+" "+version, homeURL, bugURL,
	)
	return writeFile(ctx.FS, filepath.Join(etc, "os-release"), osRelease, 0644)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func createFilesystemConfig(ctx *types.BuildContext) error {
	etc := filepath.Join(ctx.Staging, "etc")
	if err := writeFile(ctx.FS, filepath.Join(etc, "fstab"), fstabContent, 0644); err != nil {
		return err
	}
	mtab := filepath.Join(etc, "mtab")
	if _, err := ctx.FS.Lstat(mtab); err != nil {
		if err := ctx.FS.Symlink("/proc/self/mounts", mtab); err != nil {
			return err
		}
	}
	return nil
}

func createAuthConfig(ctx *types.BuildContext) error {
	etc := filepath.Join(ctx.Staging, "etc")
	if err := writeFile(ctx.FS, filepath.Join(etc, "shells"), shellsContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "login.defs"), loginDefsContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "sudoers"), sudoersContent, 0440); err != nil {
		return err
	}
	if err := ctx.FS.MkdirAll(filepath.Join(etc, "sudoers.d"), 0755); err != nil {
		return err
	}
	return writeFile(ctx.FS, filepath.Join(etc, "sudo.conf"), sudoConfContent, 0644)
}

func createLocaleConfig(ctx *types.BuildContext) error {
	etc := filepath.Join(ctx.Staging, "etc")
	localtime := filepath.Join(etc, "localtime")
	if _, err := ctx.FS.Lstat(localtime); err != nil {
		if err := ctx.FS.Symlink("/usr/share/zoneinfo/UTC", localtime); err != nil {
			return err
		}
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "adjtime"), adjtimeContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "locale.conf"), localeConfContent, 0644); err != nil {
		return err
	}
	return writeFile(ctx.FS, filepath.Join(etc, "vconsole.conf"), vconsoleConfContent, 0644)
}

func createNetworkConfig(ctx *types.BuildContext) error {
	etc := filepath.Join(ctx.Staging, "etc")
	if err := writeFile(ctx.FS, filepath.Join(etc, "hosts"), hostsContent, 0644); err != nil {
		return err
	}
	resolv := filepath.Join(etc, "resolv.conf")
	if _, err := ctx.FS.Lstat(resolv); err != nil {
		return ctx.FS.Symlink("/run/systemd/resolve/stub-resolv.conf", resolv)
	}
	return nil
}

func createShellConfig(ctx *types.BuildContext) error {
	etc := filepath.Join(ctx.Staging, "etc")
	if err := writeFile(ctx.FS, filepath.Join(etc, "profile"), profileContent, 0644); err != nil {
		return err
	}
	if err := ctx.FS.MkdirAll(filepath.Join(etc, "profile.d"), 0755); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "profile.d/xdg.sh"), xdgShContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(etc, "bashrc"), bashrcContent, 0644); err != nil {
		return err
	}

	rootHome := filepath.Join(ctx.Staging, "root")
	if err := writeFile(ctx.FS, filepath.Join(rootHome, ".bashrc"), rootBashrcContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(rootHome, ".bash_profile"), rootBashProfileContent, 0644); err != nil {
		return err
	}

	skel := filepath.Join(etc, "skel")
	if err := ctx.FS.MkdirAll(skel, 0755); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(skel, ".bashrc"), skelBashrcContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(skel, ".bash_profile"), skelBashProfileContent, 0644); err != nil {
		return err
	}

	for _, xdgDir := range []string{".config", ".local/share", ".local/state", ".cache"} {
		dir := filepath.Join(skel, xdgDir)
		if err := ctx.FS.MkdirAll(dir, 0755); err != nil {
			return err
		}
		if err := writeFile(ctx.FS, filepath.Join(dir, ".keep"), "", 0644); err != nil {
			return err
		}
	}
	return nil
}

func createTmpfilesConfigs(ctx *types.BuildContext) error {
	dir := filepath.Join(ctx.Staging, "usr/lib/tmpfiles.d")
	content := "# /run/sshd is needed by sshd for privilege separation\nd /run/sshd 0755 root root -\n"
	return writeFile(ctx.FS, filepath.Join(dir, "sshd.conf"), content, 0644)
}

func copyLdSoConf(ctx *types.BuildContext) error {
	src := filepath.Join(ctx.Source, "etc/ld.so.conf")
	dst := filepath.Join(ctx.Staging, "etc/ld.so.conf")
	if pathExists(ctx.FS, src) && !pathExists(ctx.FS, dst) {
		data, err := ctx.FS.ReadFile(src)
		if err != nil {
			return err
		}
		if err := writeFile(ctx.FS, dst, string(data), 0644); err != nil {
			return err
		}
	}

	srcDir := filepath.Join(ctx.Source, "etc/ld.so.conf.d")
	dstDir := filepath.Join(ctx.Staging, "etc/ld.so.conf.d")
	if pathExists(ctx.FS, srcDir) {
		return copyTree(ctx.FS, srcDir, dstDir)
	}
	return nil
}

// copyTimezoneData copies usr/share/zoneinfo from source to staging.
func copyTimezoneData(ctx *types.BuildContext) error {
	ctx.Logger.Infof("copying timezone data")
	src := filepath.Join(ctx.Source, "usr/share/zoneinfo")
	dst := filepath.Join(ctx.Staging, "usr/share/zoneinfo")
	if err := ctx.FS.MkdirAll(dst, 0755); err != nil {
		return err
	}
	if pathExists(ctx.FS, src) {
		return copyTree(ctx.FS, src, dst)
	}
	return nil
}

// copyLocales copies the compiled locale-archive, if present.
func copyLocales(ctx *types.BuildContext) error {
	ctx.Logger.Infof("copying locales")
	src := filepath.Join(ctx.Source, "usr/lib/locale/locale-archive")
	dst := filepath.Join(ctx.Staging, "usr/lib/locale/locale-archive")
	if !pathExists(ctx.FS, src) {
		return nil
	}
	if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	data, err := ctx.FS.ReadFile(src)
	if err != nil {
		return err
	}
	return ctx.FS.WriteFile(dst, data, 0644)
}

// copyKeymaps copies usr/lib/kbd/keymaps for vconsole setup, a feature
// present in original_source's locale handling but not split into its own
// module there; folded in here as the Go analogue of copy_timezone_data.
func copyKeymaps(ctx *types.BuildContext) error {
	ctx.Logger.Infof("copying keymaps")
	src := filepath.Join(ctx.Source, "usr/lib/kbd/keymaps")
	dst := filepath.Join(ctx.Staging, "usr/lib/kbd/keymaps")
	if !pathExists(ctx.FS, src) {
		return nil
	}
	if err := ctx.FS.MkdirAll(dst, 0755); err != nil {
		return err
	}
	return copyTree(ctx.FS, src, dst)
}
