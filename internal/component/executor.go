package component

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/levitateos/builder/internal/copier"
	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/licenses"
	"github.com/levitateos/builder/internal/types"
)

// CustomDispatcher executes a CustomOp. Implemented by
// internal/component/custom, injected here to avoid an import cycle
// (custom needs the CustomOp/BuildContext types defined in this package).
type CustomDispatcher interface {
	Dispatch(ctx *types.BuildContext, tracker *licenses.Tracker, tag CustomOp) error
}

// Executor interprets Op values against a BuildContext. It never silently
// skips: every Op either succeeds or raises (spec.md §4.3 "fail-fast
// discipline"). The executor's own staging-tree mutations go through
// ctx.FS, so those ops drive a real or an in-memory tree alike; Bin, Bins
// and Bash ops delegate to the Copier, which writes with os.* directly.
type Executor struct {
	Copier     *copier.Copier
	Dispatcher CustomDispatcher
}

// NewExecutor wires an Executor from its collaborators.
func NewExecutor(cp *copier.Copier, dispatcher CustomDispatcher) *Executor {
	return &Executor{Copier: cp, Dispatcher: dispatcher}
}

// ExecuteComponent runs every Op of item in order, annotating any failure
// with the component name and the offending Op.
func (e *Executor) ExecuteComponent(ctx *types.BuildContext, tracker *licenses.Tracker, item Installable) error {
	for _, op := range item.Ops() {
		if err := e.execute(ctx, tracker, op); err != nil {
			return errs.WrapComponent(item.Name(), describeOp(op), err)
		}
	}
	return nil
}

func (e *Executor) execute(ctx *types.BuildContext, tracker *licenses.Tracker, op Op) error {
	switch o := op.(type) {
	case OpDir:
		return ctx.FS.MkdirAll(filepath.Join(ctx.Staging, o.Path), 0755)

	case OpDirMode:
		return ctx.FS.MkdirAll(filepath.Join(ctx.Staging, o.Path), os.FileMode(o.Mode))

	case OpDirs:
		for _, p := range o.Paths {
			if err := ctx.FS.MkdirAll(filepath.Join(ctx.Staging, p), 0755); err != nil {
				return err
			}
		}
		return nil

	case OpBin:
		return e.execBin(ctx, o.Name, o.Dest)

	case OpBins:
		return e.execBins(ctx, o.Names, o.Dest)

	case OpBash:
		return e.Copier.CopyBash(ctx.Source, ctx.Staging)

	case OpSystemdBinaries:
		return e.execSystemdBinaries(ctx, o.Helpers)

	case OpSudoLibs:
		return e.execSudoLibs(ctx, o.Libs)

	case OpCopyFile:
		return e.execCopyFile(ctx, o.Path)

	case OpCopyTree:
		return e.execCopyTree(ctx, o.Path)

	case OpWriteFile:
		return e.writeStaged(ctx, o.Path, o.Content, 0644)

	case OpWriteFileMode:
		return e.writeStaged(ctx, o.Path, o.Content, os.FileMode(o.Mode))

	case OpSymlink:
		return e.execSymlink(ctx, o.Link, o.Target)

	case OpUnits:
		return e.execUnits(ctx, "usr/lib/systemd/system", "usr/lib/systemd/system", o.Names)

	case OpUserUnits:
		return e.execUnits(ctx, "usr/lib/systemd/user", "usr/lib/systemd/user", o.Names)

	case OpEnable:
		return e.execEnable(ctx, o.Unit, o.Target)

	case OpDbusSymlinks:
		return e.execDbusSymlinks(ctx, o.Names)

	case OpUdevHelpers:
		return e.execUdevHelpers(ctx, o.Names)

	case OpUser:
		return e.execUser(ctx, o)

	case OpGroup:
		return e.execGroup(ctx, o)

	case OpCustom:
		if e.Dispatcher == nil {
			return fmt.Errorf("no custom-op dispatcher configured")
		}
		return e.Dispatcher.Dispatch(ctx, tracker, o.Tag)

	default:
		return fmt.Errorf("unhandled op type %T", op)
	}
}

func (e *Executor) execBin(ctx *types.BuildContext, name string, dest Dest) error {
	found, err := e.Copier.CopyBinaryWithLibs(ctx.Source, ctx.Staging, name, dest.String())
	if err != nil {
		return err
	}
	if !found {
		return errs.NewMissingInput("binary "+name, "not found in source rootfs")
	}
	return nil
}

// execBins deliberately aggregates every missing name before failing, so
// one build reports the full deficit (spec.md §4.3, end-to-end scenario 2).
func (e *Executor) execBins(ctx *types.BuildContext, names []string, dest Dest) error {
	var missing []string
	for _, name := range names {
		found, err := e.Copier.CopyBinaryWithLibs(ctx.Source, ctx.Staging, name, dest.String())
		if err != nil {
			return err
		}
		if !found {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errs.NewMissingInput("binaries", fmt.Sprintf("%v not found in source rootfs", missing))
	}
	return nil
}

// execSystemdBinaries copies /usr/lib/systemd/systemd, its helper daemons,
// and every libsystemd-*.so private library, then creates the
// /usr/sbin/init symlink. Missing helpers are aggregated like Bins.
func (e *Executor) execSystemdBinaries(ctx *types.BuildContext, helpers []string) error {
	var merr *multierror.Error

	src := filepath.Join(ctx.Source, "usr/lib/systemd/systemd")
	dst := filepath.Join(ctx.Staging, "usr/lib/systemd/systemd")
	if data, err := ctx.FS.ReadFile(src); err != nil {
		merr = multierror.Append(merr, errs.NewMissingInput("systemd", "not found at usr/lib/systemd/systemd"))
	} else {
		if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := ctx.FS.WriteFile(dst, data, 0755); err != nil {
			return err
		}
		if libs, err := e.Copier.Resolver().Closure(ctx.Source, src); err == nil {
			for lib := range libs {
				if err := e.Copier.CopyLibrary(ctx.Source, lib, ctx.Staging); err != nil {
					merr = multierror.Append(merr, err)
				}
			}
		}
	}

	// Helper daemons live under usr/lib/systemd/ on the upstream rootfs;
	// a few (udevadm-era layouts) fall back to the sbin search paths.
	var missing []string
	for _, h := range helpers {
		helperSrc := filepath.Join(ctx.Source, "usr/lib/systemd", h)
		if data, err := ctx.FS.ReadFile(helperSrc); err == nil {
			helperDst := filepath.Join(ctx.Staging, "usr/lib/systemd", h)
			if err := ctx.FS.WriteFile(helperDst, data, 0755); err != nil {
				return err
			}
			if libs, err := e.Copier.Resolver().Closure(ctx.Source, helperSrc); err == nil {
				for lib := range libs {
					if err := e.Copier.CopyLibrary(ctx.Source, lib, ctx.Staging); err != nil {
						merr = multierror.Append(merr, err)
					}
				}
			}
			continue
		}

		found, err := e.Copier.CopySbinBinaryWithLibs(ctx.Source, ctx.Staging, h)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		if !found {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		merr = multierror.Append(merr, errs.NewMissingInput("systemd helpers", fmt.Sprintf("%v not found in source rootfs", missing)))
	}

	for _, libDir := range []string{"usr/lib64/systemd", "usr/lib/systemd"} {
		entries, err := ctx.FS.ReadDir(filepath.Join(ctx.Source, libDir))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, "libsystemd-") || !strings.Contains(name, ".so") {
				continue
			}
			if err := e.Copier.CopyLibrary(ctx.Source, name, ctx.Staging); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
	}

	if err := ctx.FS.MkdirAll(filepath.Join(ctx.Staging, "usr/sbin"), 0755); err == nil {
		link := filepath.Join(ctx.Staging, "usr/sbin/init")
		if _, statErr := ctx.FS.Lstat(link); statErr != nil {
			_ = ctx.FS.Symlink("/usr/lib/systemd/systemd", link)
		}
	}

	return merr.ErrorOrNil()
}

func (e *Executor) execSudoLibs(ctx *types.BuildContext, libs []string) error {
	for _, lib := range libs {
		if err := e.Copier.CopyLibrary(ctx.Source, lib, ctx.Staging); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) execCopyFile(ctx *types.BuildContext, relPath string) error {
	src := filepath.Join(ctx.Source, relPath)
	dst := filepath.Join(ctx.Staging, relPath)
	if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	data, err := ctx.FS.ReadFile(src)
	if err != nil {
		return errs.NewMissingInput("file "+relPath, "not found in source rootfs")
	}
	mode := os.FileMode(0644)
	if info, statErr := ctx.FS.Stat(src); statErr == nil {
		mode = info.Mode()
	}
	return ctx.FS.WriteFile(dst, data, mode)
}

// execCopyTree copies an entire subtree from source to staging, preserving
// symlinks literally (never dereferencing) — spec.md end-to-end scenario 6.
func (e *Executor) execCopyTree(ctx *types.BuildContext, relPath string) error {
	src := filepath.Join(ctx.Source, relPath)
	dst := filepath.Join(ctx.Staging, relPath)

	if _, err := ctx.FS.Lstat(src); err != nil {
		return errs.NewMissingInput("tree "+relPath, "not found in source rootfs")
	}
	return copyTreePreservingSymlinks(ctx.FS, src, dst)
}

func copyTreePreservingSymlinks(fsys types.FS, src, dst string) error {
	info, err := fsys.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := fsys.Readlink(src)
		if err != nil {
			return err
		}
		if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if _, err := fsys.Lstat(dst); err == nil {
			return nil
		}
		return fsys.Symlink(target, dst)

	case info.IsDir():
		if err := fsys.MkdirAll(dst, 0755); err != nil {
			return err
		}
		entries, err := fsys.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyTreePreservingSymlinks(fsys, filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil

	default:
		if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		data, err := fsys.ReadFile(src)
		if err != nil {
			return err
		}
		return fsys.WriteFile(dst, data, info.Mode())
	}
}

func (e *Executor) writeStaged(ctx *types.BuildContext, relPath, content string, mode os.FileMode) error {
	dst := filepath.Join(ctx.Staging, relPath)
	if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return ctx.FS.WriteFile(dst, []byte(content), mode)
}

// execSymlink creates link only if it doesn't already exist.
func (e *Executor) execSymlink(ctx *types.BuildContext, link, target string) error {
	dst := filepath.Join(ctx.Staging, link)
	if _, err := ctx.FS.Lstat(dst); err == nil {
		return nil
	}
	if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return ctx.FS.Symlink(target, dst)
}

func (e *Executor) execUnits(ctx *types.BuildContext, srcSubdir, destSubdir string, names []string) error {
	var missing []string
	for _, name := range names {
		src := filepath.Join(ctx.Source, srcSubdir, name)
		dst := filepath.Join(ctx.Staging, destSubdir, name)
		data, err := ctx.FS.ReadFile(src)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := ctx.FS.WriteFile(dst, data, 0644); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return errs.NewMissingInput("unit files", fmt.Sprintf("%v not found in source rootfs", missing))
	}
	return nil
}

func (e *Executor) execEnable(ctx *types.BuildContext, unit string, target Target) error {
	wantsDir := filepath.Join(ctx.Staging, target.WantsDir())
	if err := ctx.FS.MkdirAll(wantsDir, 0755); err != nil {
		return err
	}
	link := filepath.Join(wantsDir, unit)
	if _, err := ctx.FS.Lstat(link); err == nil {
		return nil
	}
	return ctx.FS.Symlink(filepath.Join("/usr/lib/systemd/system", unit), link)
}

func (e *Executor) execDbusSymlinks(ctx *types.BuildContext, names []string) error {
	for _, name := range names {
		src := filepath.Join(ctx.Source, "usr/lib/systemd/system", name)
		target, err := ctx.FS.Readlink(src)
		if err != nil {
			return errs.NewMissingInput("dbus symlink "+name, "not a symlink in source rootfs")
		}
		dst := filepath.Join(ctx.Staging, "usr/lib/systemd/system", name)
		if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if _, err := ctx.FS.Lstat(dst); err == nil {
			continue
		}
		if err := ctx.FS.Symlink(target, dst); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) execUdevHelpers(ctx *types.BuildContext, names []string) error {
	var missing []string
	for _, name := range names {
		src := filepath.Join(ctx.Source, "usr/lib/udev", name)
		dst := filepath.Join(ctx.Staging, "usr/lib/udev", name)
		data, err := ctx.FS.ReadFile(src)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := ctx.FS.WriteFile(dst, data, 0755); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return errs.NewMissingInput("udev helpers", fmt.Sprintf("%v not found in source rootfs", missing))
	}
	return nil
}

// execUser appends to /etc/passwd, idempotent: a matching entry already
// present is left untouched.
func (e *Executor) execUser(ctx *types.BuildContext, u OpUser) error {
	path := filepath.Join(ctx.Staging, "etc/passwd")
	line := fmt.Sprintf("%s:x:%d:%d::%s:%s\n", u.Name, u.UID, u.GID, u.Home, u.Shell)
	return appendIfAbsent(ctx.FS, path, u.Name+":", line)
}

// execGroup appends to /etc/group, idempotent.
func (e *Executor) execGroup(ctx *types.BuildContext, g OpGroup) error {
	path := filepath.Join(ctx.Staging, "etc/group")
	line := fmt.Sprintf("%s:x:%d:\n", g.Name, g.GID)
	return appendIfAbsent(ctx.FS, path, g.Name+":", line)
}

func appendIfAbsent(fsys types.FS, path, prefix, line string) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	existing, err := fsys.ReadFile(path)
	if err != nil {
		existing = nil
	}
	for _, l := range splitLines(string(existing)) {
		if len(l) >= len(prefix) && l[:len(prefix)] == prefix {
			return nil
		}
	}
	return fsys.WriteFile(path, append(existing, []byte(line)...), 0644)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func describeOp(op Op) string {
	switch o := op.(type) {
	case OpBin:
		return fmt.Sprintf("Bin(%s)", o.Name)
	case OpBins:
		return fmt.Sprintf("Bins(%v)", o.Names)
	case OpCopyFile:
		return fmt.Sprintf("CopyFile(%s)", o.Path)
	case OpCopyTree:
		return fmt.Sprintf("CopyTree(%s)", o.Path)
	case OpCustom:
		return fmt.Sprintf("Custom(%d)", o.Tag)
	default:
		return fmt.Sprintf("%T", op)
	}
}
