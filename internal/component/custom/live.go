package custom

import (
	"path/filepath"

	"github.com/levitateos/builder/internal/types"
)

const liveConsoleAutologinUnit = `[Unit]
Description=Console autologin
Conflicts=getty@tty1.service
After=systemd-user-sessions.service plymouth-quit-wait.service

[Service]
ExecStart=-/sbin/agetty --autologin root --noclear %I $TERM
Type=idle
Restart=always

[Install]
WantedBy=getty.target
`

const liveSerialConsoleUnit = `[Unit]
Description=Serial console autologin
After=systemd-user-sessions.service

[Service]
ExecStart=-/sbin/agetty --autologin root --keep-baud 115200,57600,38400,9600 ttyS0 vt220
Type=idle
Restart=always

[Install]
WantedBy=multi-user.target
`

// liveShadowContent gives the live image an empty root password; intentional
// archiso-like behavior for the read-only public ISO. Installed systems use
// the locked root entry from the regular /etc/shadow instead.
const liveShadowContent = "root::19000:0:99999:7:::\n"

const liveDocsShContent = `if [ -t 0 ] && [ -z "$TMUX" ]; then
    exec tmux new-session -s docs "levitate-docs"
fi
`

const liveTestModeContent = `[ -n "$LEVITATE_TEST_MODE" ] && echo "levitate test mode active"
`

const motdContent = `Welcome to LevitateOS.
`

const liveIssueContent = `LevitateOS live \r \l

`

// createLiveOverlay builds the live-boot-only overlay (autologin, serial
// console, empty root password) under ctx.Output, applied by the ISO
// packer but never extracted into an installed system.
func createLiveOverlay(ctx *types.BuildContext) error {
	ctx.Logger.Infof("creating live overlay directory")

	overlayDir := filepath.Join(ctx.Output, "live-overlay")
	if pathExists(ctx.FS, overlayDir) {
		if err := ctx.FS.RemoveAll(overlayDir); err != nil {
			return err
		}
	}

	systemdDir := filepath.Join(overlayDir, "etc/systemd/system")
	gettyWants := filepath.Join(systemdDir, "getty.target.wants")
	multiUserWants := filepath.Join(systemdDir, "multi-user.target.wants")

	for _, d := range []string{gettyWants, multiUserWants, filepath.Join(overlayDir, "etc")} {
		if err := ctx.FS.MkdirAll(d, 0755); err != nil {
			return err
		}
	}

	if err := writeFile(ctx.FS, filepath.Join(systemdDir, "console-autologin.service"), liveConsoleAutologinUnit, 0644); err != nil {
		return err
	}
	if err := ctx.FS.Symlink("../console-autologin.service", filepath.Join(gettyWants, "console-autologin.service")); err != nil {
		return err
	}

	if err := writeFile(ctx.FS, filepath.Join(systemdDir, "serial-console.service"), liveSerialConsoleUnit, 0644); err != nil {
		return err
	}
	if err := ctx.FS.Symlink("../serial-console.service", filepath.Join(multiUserWants, "serial-console.service")); err != nil {
		return err
	}

	if err := writeFile(ctx.FS, filepath.Join(overlayDir, "etc/shadow"), liveShadowContent, 0600); err != nil {
		return err
	}

	profileD := filepath.Join(overlayDir, "etc/profile.d")
	if err := ctx.FS.MkdirAll(profileD, 0755); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(profileD, "00-levitate-test.sh"), liveTestModeContent, 0644); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(profileD, "live-docs.sh"), liveDocsShContent, 0644); err != nil {
		return err
	}

	ctx.Logger.Infof("created live overlay")
	return nil
}

// createWelcomeMessage writes MOTD and issue banners for the live image.
func createWelcomeMessage(ctx *types.BuildContext) error {
	if err := writeFile(ctx.FS, filepath.Join(ctx.Staging, "etc/motd"), motdContent, 0644); err != nil {
		return err
	}
	return writeFile(ctx.FS, filepath.Join(ctx.Staging, "etc/issue"), liveIssueContent, 0644)
}

// setupLiveSystemdConfigs applies live-only systemd overrides: a volatile
// journal (nothing worth persisting on a read-only ISO) and suspend/lid
// handling disabled (a live session has no sleep state worth entering).
func setupLiveSystemdConfigs(ctx *types.BuildContext) error {
	ctx.Logger.Infof("setting up live systemd configs")

	journaldDir := filepath.Join(ctx.Staging, "etc/systemd/journald.conf.d")
	if err := ctx.FS.MkdirAll(journaldDir, 0755); err != nil {
		return err
	}
	if err := writeFile(ctx.FS, filepath.Join(journaldDir, "volatile.conf"), "[Journal]\nStorage=volatile\nRuntimeMaxUse=64M\n", 0644); err != nil {
		return err
	}

	logindDir := filepath.Join(ctx.Staging, "etc/systemd/logind.conf.d")
	if err := ctx.FS.MkdirAll(logindDir, 0755); err != nil {
		return err
	}
	logindConf := "[Login]\nHandleSuspendKey=ignore\nHandleHibernateKey=ignore\n" +
		"HandleLidSwitch=ignore\nHandleLidSwitchExternalPower=ignore\nIdleAction=ignore\n"
	return writeFile(ctx.FS, filepath.Join(logindDir, "do-not-suspend.conf"), logindConf, 0644)
}
