// Package process centralizes the pipeline's external-tool invocations: see
// spec.md §9 "Subprocess discipline" — argument list, no shell
// interpolation, captured stderr, a remediation-carrying error. Outside this
// package os/exec is used only by the live initramfs's find|cpio|gzip
// pipeline, the mount lookup in internal/initramfs/mounter.go, and the git
// clone fallback in internal/deps when its Resolver has no Runner.
package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/types"
)

// remediation maps a host tool to the package that commonly provides it, so
// a MissingHostTool error can name a fix instead of just a symptom.
var remediation = map[string]string{
	"readelf":    "binutils",
	"mksquashfs": "squashfs-tools",
	"mkfs.erofs": "erofs-utils",
	"xorriso":    "xorriso",
	"mkfs.fat":   "dosfstools",
	"mmd":        "dosfstools",
	"mcopy":      "mtools",
	"cpio":       "cpio",
	"gzip":       "gzip",
	"depmod":     "kmod",
	"rpm2cpio":   "rpm",
	"ssh-keygen": "openssh-clients",
	"dracut":     "dracut",
	"make":       "make",
	"git":        "git",
	"curl":       "curl",
	"umount":     "util-linux",
	"mount":      "util-linux",
	"dd":         "coreutils",
	"sha256sum":  "coreutils",
	"sha512sum":  "coreutils",
	"tar":        "tar",
}

// Runner is the concrete types.Runner backed by go-execute.
type Runner struct{}

// New returns a Runner.
func New() *Runner {
	return &Runner{}
}

var _ types.Runner = (*Runner)(nil)

// LookPath resolves a tool name on PATH, returning a MissingHostTool-shaped
// error naming the remediation package when it cannot be found.
func (r *Runner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", MissingHostTool(name)
	}
	return path, nil
}

// Run executes name with args in the current working directory.
func (r *Runner) Run(name string, args ...string) (string, string, error) {
	return r.RunWithDir("", name, args...)
}

// RunWithDir executes name with args in dir (current directory if empty).
func (r *Runner) RunWithDir(dir, name string, args ...string) (string, string, error) {
	if _, err := r.LookPath(name); err != nil {
		return "", "", err
	}

	cmd := execute.ExecTask{
		Command:     name,
		Args:        args,
		Cwd:         dir,
		StreamStdio: false,
	}

	res, err := cmd.Execute(context.Background())
	if err != nil {
		return "", "", errors.Wrapf(err, "running %s", name)
	}
	if res.ExitCode != 0 {
		return res.Stdout, res.Stderr, BuildToolFailure(name, args, res.ExitCode, res.Stderr)
	}
	return res.Stdout, res.Stderr, nil
}

// MissingHostTool builds the MissingHostTool error for name.
func MissingHostTool(name string) error {
	pkg, ok := remediation[name]
	if !ok {
		pkg = "the appropriate package for your distribution"
	}
	return errors.Errorf("missing host tool %q: not found on PATH; install %s", name, pkg)
}

// BuildToolFailure builds the BuildToolFailure error for a non-zero exit.
func BuildToolFailure(name string, args []string, exitCode int, stderr string) error {
	return fmt.Errorf("%s %s: exited %d: %s", name, strings.Join(args, " "), exitCode, strings.TrimSpace(stderr))
}
