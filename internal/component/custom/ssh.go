package custom

import (
	"fmt"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/levitateos/builder/internal/types"
)

type sshKeyType struct {
	name string
	bits int
}

// sshKeyTypes mirrors original_source's three host key types generated for
// modern sshd: RSA with a safe minimum size, ECDSA on P-256, and Ed25519.
var sshKeyTypes = []sshKeyType{
	{"rsa", 3072},
	{"ecdsa", 256},
	{"ed25519", 0},
}

// createSshHostKeys pre-generates SSH host keys so sshd can start
// immediately without depending on sshd-keygen@.service, whose startup
// ordering has been a source of reproducibility trouble.
//
// Shared keys are fine for a public, read-only live ISO; installed systems
// regenerate them during installation.
func createSshHostKeys(ctx *types.BuildContext) error {
	ctx.Logger.Infof("generating SSH host keys")

	sshDir := filepath.Join(ctx.Staging, "etc/ssh")
	if err := ctx.FS.MkdirAll(sshDir, 0755); err != nil {
		return err
	}
	if err := ctx.FS.Chmod(sshDir, 0755); err != nil {
		return err
	}

	for _, kt := range sshKeyTypes {
		keyPath := filepath.Join(sshDir, fmt.Sprintf("ssh_host_%s_key", kt.name))
		pubKeyPath := keyPath + ".pub"

		if keyPairValid(ctx, keyPath, pubKeyPath) {
			ctx.Logger.Debugf("%s key pair already exists, skipping", kt.name)
			continue
		}

		_ = ctx.FS.Remove(keyPath)
		_ = ctx.FS.Remove(pubKeyPath)

		args := []string{"-t", kt.name, "-f", keyPath, "-N", "", "-q"}
		if kt.bits > 0 {
			args = append(args, "-b", fmt.Sprintf("%d", kt.bits))
		}
		if _, _, err := ctx.Runner.Run("ssh-keygen", args...); err != nil {
			return fmt.Errorf("failed to generate SSH %s host key: %w", kt.name, err)
		}

		if !pathExists(ctx.FS, keyPath) {
			return fmt.Errorf("SSH %s private key was not created", kt.name)
		}
		if !pathExists(ctx.FS, pubKeyPath) {
			return fmt.Errorf("SSH %s public key was not created", kt.name)
		}
		if err := ctx.FS.Chmod(keyPath, 0600); err != nil {
			return err
		}
		if err := ctx.FS.Chmod(pubKeyPath, 0644); err != nil {
			return err
		}
		ctx.Logger.Infof("generated %s key pair", kt.name)
	}

	ctx.Logger.Infof("SSH host keys ready")
	return nil
}

// keyPairValid requires both files to exist AND the public key to parse as
// a well-formed authorized-key line; a half-written pair from a previous
// interrupted build is regenerated rather than trusted.
func keyPairValid(ctx *types.BuildContext, keyPath, pubKeyPath string) bool {
	if !pathExists(ctx.FS, keyPath) || !pathExists(ctx.FS, pubKeyPath) {
		return false
	}
	data, err := ctx.FS.ReadFile(pubKeyPath)
	if err != nil {
		return false
	}
	_, _, _, _, err = ssh.ParseAuthorizedKey(data)
	return err == nil
}
