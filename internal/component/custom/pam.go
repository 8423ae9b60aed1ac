package custom

import (
	"path/filepath"

	"github.com/levitateos/builder/internal/types"
)

const pamSystemAuth = `auth        required      pam_env.so
auth        sufficient    pam_unix.so try_first_pass nullok
auth        required      pam_deny.so

account     required      pam_unix.so
account     required      pam_permit.so

password    sufficient    pam_unix.so try_first_pass sha512 shadow
password    required      pam_deny.so

session     optional      pam_keyinit.so revoke
session     required      pam_limits.so
session     required      pam_unix.so
`

const pamPostlogin = `session     optional      pam_lastlog.so silent
`

const pamLogin = `auth        substack      system-auth
account     required      pam_nologin.so
account     include       system-auth
password    include       system-auth
session     required      pam_env.so
session     include       system-auth
`

const pamRemote = pamLogin
const pamSshd = pamLogin
const pamRunuser = `auth        sufficient    pam_rootok.so
session     required      pam_unix.so
`
const pamRunuserL = pamRunuser
const pamSu = `auth        sufficient    pam_rootok.so
auth        include       system-auth
account     include       system-auth
password    include       system-auth
session     include       system-auth
`
const pamSuL = pamSu
const pamSudo = `auth        include       system-auth
account     include       system-auth
password    include       system-auth
session     include       system-auth
`
const pamCrond = `session     required      pam_loginuid.so
session     required      pam_limits.so
`
const pamSystemdUser = `session     required      pam_unix.so
session     required      pam_loginuid.so
`
const pamPasswd = `password    include       system-auth
`
const pamChpasswd = pamPasswd
const pamChfn = `auth        sufficient    pam_rootok.so
auth        include       system-auth
account     include       system-auth
`
const pamChsh = pamChfn
const pamOther = `auth        required      pam_deny.so
account     required      pam_deny.so
password    required      pam_deny.so
session     required      pam_deny.so
`

func createPamFiles(ctx *types.BuildContext) error {
	ctx.Logger.Infof("setting up PAM configuration")
	pamDir := filepath.Join(ctx.Staging, "etc/pam.d")
	if err := ctx.FS.MkdirAll(pamDir, 0755); err != nil {
		return err
	}

	files := map[string]string{
		"system-auth":   pamSystemAuth,
		"password-auth": pamSystemAuth,
		"postlogin":     pamPostlogin,
		"login":         pamLogin,
		"remote":        pamRemote,
		"sshd":          pamSshd,
		"runuser":       pamRunuser,
		"runuser-l":     pamRunuserL,
		"su":            pamSu,
		"su-l":          pamSuL,
		"sudo":          pamSudo,
		"crond":         pamCrond,
		"systemd-user":  pamSystemdUser,
		"passwd":        pamPasswd,
		"chpasswd":      pamChpasswd,
		"chfn":          pamChfn,
		"chsh":          pamChsh,
		"other":         pamOther,
	}
	for name, content := range files {
		if err := writeFile(ctx.FS, filepath.Join(pamDir, name), content, 0644); err != nil {
			return err
		}
	}
	return nil
}

const limitsConf = `* soft nofile 1024
* hard nofile 65536
`
const accessConf = `+ : root : LOCAL
`
const namespaceConf = ``
const pamEnvConf = `REMOTEHOST DEFAULT=
`
const pwqualityConf = `minlen = 8
`

func createSecurityConfig(ctx *types.BuildContext) error {
	ctx.Logger.Infof("creating security configuration")
	dir := filepath.Join(ctx.Staging, "etc/security")
	if err := ctx.FS.MkdirAll(dir, 0755); err != nil {
		return err
	}
	files := map[string]string{
		"limits.conf":    limitsConf,
		"access.conf":    accessConf,
		"namespace.conf": namespaceConf,
		"pam_env.conf":   pamEnvConf,
		"pwquality.conf": pwqualityConf,
	}
	for name, content := range files {
		if err := writeFile(ctx.FS, filepath.Join(dir, name), content, 0644); err != nil {
			return err
		}
	}
	return nil
}

// disableSelinux writes a disabled SELinux config: LevitateOS ships no
// SELinux policies.
func disableSelinux(ctx *types.BuildContext) error {
	dir := filepath.Join(ctx.Staging, "etc/selinux")
	if err := ctx.FS.MkdirAll(dir, 0755); err != nil {
		return err
	}
	content := "# SELinux disabled - LevitateOS doesn't ship SELinux policies\nSELINUX=disabled\nSELINUXTYPE=targeted\n"
	if err := writeFile(ctx.FS, filepath.Join(dir, "config"), content, 0644); err != nil {
		return err
	}
	ctx.Logger.Infof("disabled SELinux")
	return nil
}
