// Package initramfs implements the initramfs builder (component G): the
// live cpio+gzip payload that mounts the packed filesystem image and
// pivots to it, and the installed-system dracut-in-chroot builder.
//
// Grounded on original_source/src/artifact/initramfs.rs (live) and the
// chroot lifecycle pattern of the teacher's utils.NewChroot(...).Run(...)
// (other_examples' volantvm-fledge and bitswalk-ldf initramfs builders
// confirm the idiomatic find|cpio|gzip pipeline used here).
package initramfs

import (
	_ "embed"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"

	"github.com/levitateos/builder/internal/atomicfile"
	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/types"
)

//go:embed templates/init_tiny.tmpl
var initTemplateSource string

// InitTemplate returns the raw (unrendered) live init script template, for
// preflight's shebang/mount/switch_root validation.
func InitTemplate() string { return initTemplateSource }

// BootModules is the static list of kernel modules the live init script
// may need to modprobe before it can see the boot device or build the
// overlay, per spec.md §4.6.
var BootModules = []string{
	"squashfs", "overlay", "isofs", "loop",
	"sd_mod", "sr_mod", "usb_storage", "uas", "ahci", "nvme",
}

// LiveBuilder assembles the tiny live-boot initramfs.
type LiveBuilder struct {
	Logger     types.Logger
	Resolver   *deps.Resolver
	BusyboxURL string
}

// LiveSpec parameterizes one live-initramfs build.
type LiveSpec struct {
	// WorkDir is a scratch directory the builder owns and populates; it is
	// removed after the cpio archive is produced.
	WorkDir string
	// OutputPath is the final gzip-compressed cpio archive location.
	OutputPath string
	// ModulesDir is the kernel modules tree to pull BootModules from
	// (e.g. output/squashfs-root/lib/modules); modules are searched under
	// ModulesDir/KernelVersion.
	ModulesDir string
	// KernelVersion selects the versioned modules subdirectory.
	KernelVersion string
	// ModulesBuiltin, if non-empty, names the modules.builtin file: for
	// custom kernels, a boot module already compiled in is skipped rather
	// than treated as missing.
	ModulesBuiltin string
	// Custom is true when KernelVersion names a kernel this pipeline
	// built itself (internal/kernel), rather than the upstream kernel.
	Custom bool
}

// Build produces the final gzip-compressed cpio archive at
// spec.OutputPath, atomically.
func (b *LiveBuilder) Build(spec LiveSpec) error {
	if err := os.MkdirAll(spec.WorkDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(spec.WorkDir)

	if err := b.layoutSkeleton(spec.WorkDir); err != nil {
		return err
	}

	if err := b.installBusybox(spec.WorkDir); err != nil {
		return err
	}

	if err := b.installModules(spec); err != nil {
		return err
	}

	if err := b.writeInit(spec.WorkDir); err != nil {
		return err
	}

	return atomicfile.Write(spec.OutputPath, constants.InitramfsMinSizeBytes, func(tmp string) error {
		return packCpioGzip(spec.WorkDir, tmp)
	})
}

func (b *LiveBuilder) layoutSkeleton(root string) error {
	dirs := []string{
		"bin", "dev", "proc", "sys", "mnt",
		"mnt/lower", "mnt/overlay", "mnt/newroot",
		"lib/modules",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return errors.Wrapf(err, "creating initramfs skeleton dir %s", d)
		}
	}
	return nil
}

// busyboxApplets is the set of command names symlinked to /bin/busybox.
var busyboxApplets = []string{
	"sh", "ash", "ls", "cat", "cp", "mv", "rm", "mkdir", "rmdir", "ln",
	"chmod", "chown", "ps", "kill", "mount", "umount", "switch_root",
	"grep", "sed", "awk", "find", "test", "echo", "printf", "modprobe",
	"true", "false", "sleep", "pwd", "env", "blkid", "losetup", "cut",
}

func (b *LiveBuilder) installBusybox(root string) error {
	dest := filepath.Join(root, "bin/busybox")

	if b.Resolver != nil {
		resolved, err := b.Resolver.Resolve(deps.Descriptor{
			Name:   "busybox",
			EnvVar: "LEVITATE_BUSYBOX_PATH",
			URL:    b.BusyboxURL,
		})
		if err != nil {
			return errors.Wrap(err, "resolving static busybox binary")
		}
		if err := copyFile(resolved.Path, dest, 0755); err != nil {
			return err
		}
	} else {
		return errs.NewMissingInput("busybox", "no dependency resolver configured")
	}

	for _, applet := range busyboxApplets {
		link := filepath.Join(root, "bin", applet)
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		if err := os.Symlink("busybox", link); err != nil {
			return errors.Wrapf(err, "symlinking busybox applet %s", applet)
		}
	}
	return nil
}

// installModules copies BootModules (extension auto-detected among .ko,
// .ko.xz, .ko.gz) from spec.ModulesDir/spec.KernelVersion into the
// initramfs. For custom kernels, modules.builtin is consulted first and a
// built-in module is skipped; for upstream kernels every listed module
// must be present or the build fails naming the full missing list.
func (b *LiveBuilder) installModules(spec LiveSpec) error {
	if spec.ModulesDir == "" || spec.KernelVersion == "" {
		return errs.NewMissingInput("kernel modules", "no ModulesDir/KernelVersion configured for the live initramfs")
	}

	builtin := make(map[string]bool)
	if spec.Custom && spec.ModulesBuiltin != "" {
		if data, err := os.ReadFile(spec.ModulesBuiltin); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				builtin[moduleNameFromBuiltinPath(line)] = true
			}
		}
	}

	srcBase := filepath.Join(spec.ModulesDir, spec.KernelVersion)
	dstDir := filepath.Join(spec.WorkDir, "lib/modules")

	var missing []string
	for _, mod := range BootModules {
		if builtin[mod] {
			b.Logger.Debugf("module %s is built into the custom kernel, skipping", mod)
			continue
		}

		path, ok := findModuleFile(srcBase, mod)
		if !ok {
			if spec.Custom {
				b.Logger.Debugf("module %s not found for custom kernel (may be built in)", mod)
				continue
			}
			missing = append(missing, mod)
			continue
		}
		if strings.HasSuffix(path, ".ko.xz") {
			if err := verifyXZModule(path); err != nil {
				return errors.Wrapf(err, "module %s failed integrity check", mod)
			}
		}
		if err := copyFile(path, filepath.Join(dstDir, filepath.Base(path)), 0644); err != nil {
			return errors.Wrapf(err, "copying module %s", mod)
		}
	}

	if len(missing) > 0 {
		return errs.NewMissingInput("boot modules", strings.Join(missing, ", ")+" not found under "+srcBase)
	}
	return nil
}

// verifyXZModule opens an xz reader over path and reads a bit of the
// decompressed stream, catching a corrupt/truncated .ko.xz module before it
// is copied into the initramfs rather than discovering it at boot.
func verifyXZModule(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "not a valid xz stream")
	}
	buf := make([]byte, 4096)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return errors.Wrap(err, "xz stream failed to decode")
	}
	return nil
}

func moduleNameFromBuiltinPath(p string) string {
	base := filepath.Base(p)
	base = strings.TrimSuffix(base, ".ko")
	return base
}

var moduleExtensions = []string{".ko", ".ko.xz", ".ko.gz"}

func findModuleFile(base, name string) (string, bool) {
	var found string
	_ = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || found != "" {
			return nil
		}
		for _, ext := range moduleExtensions {
			if d.Name() == name+ext {
				found = path
				return filepath.SkipAll
			}
		}
		return nil
	})
	return found, found != ""
}

// initTemplateData is substituted into templates/init_tiny.tmpl.
type initTemplateData struct {
	ISOLabel        string
	RootfsPath      string
	BootModules     string
	LiveOverlayPath string
	BootDevices     string
}

func (b *LiveBuilder) writeInit(root string) error {
	tmpl, err := template.New("init_tiny").Parse(initTemplateSource)
	if err != nil {
		return errors.Wrap(err, "parsing init template")
	}

	data := initTemplateData{
		ISOLabel:        constants.ISOLabel,
		RootfsPath:      constants.IsoSquashfsPath,
		BootModules:     strings.Join(BootModules, " "),
		LiveOverlayPath: constants.IsoOverlayPath,
		BootDevices:     "/dev/sr0 /dev/sda1 /dev/sdb1 /dev/nvme0n1p1",
	}

	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, data); err != nil {
		return errors.Wrap(err, "rendering init template")
	}

	return os.WriteFile(filepath.Join(root, "init"), []byte(rendered.String()), 0755)
}

// packCpioGzip runs `find . -print0 | cpio --null -o --format=newc | gzip`
// rooted at root, writing the compressed archive to destPath. The pipeline
// is the one case spec.md §9 allows shelling past a single-tool wrapper:
// "no shell interpolation unless a pipeline is unavoidable."
func packCpioGzip(root, destPath string) error {
	findCmd := exec.Command("find", ".", "-print0")
	findCmd.Dir = root

	cpioCmd := exec.Command("cpio", "--null", "-o", "--format=newc")
	cpioCmd.Dir = root

	gzipCmd := exec.Command("gzip", "-9")

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	var cpioErr, gzipErr, findErr strings.Builder

	pipe1, err := findCmd.StdoutPipe()
	if err != nil {
		return err
	}
	cpioCmd.Stdin = pipe1
	cpioCmd.Stderr = &cpioErr

	pipe2, err := cpioCmd.StdoutPipe()
	if err != nil {
		return err
	}
	gzipCmd.Stdin = pipe2
	gzipCmd.Stdout = out
	gzipCmd.Stderr = &gzipErr
	findCmd.Stderr = &findErr

	if err := gzipCmd.Start(); err != nil {
		return errors.Wrap(err, "starting gzip")
	}
	if err := cpioCmd.Start(); err != nil {
		return errors.Wrap(err, "starting cpio")
	}
	if err := findCmd.Start(); err != nil {
		return errors.Wrap(err, "starting find")
	}

	if err := findCmd.Wait(); err != nil {
		return errors.Wrapf(err, "find: %s", findErr.String())
	}
	if err := cpioCmd.Wait(); err != nil {
		return errors.Wrapf(err, "cpio: %s", cpioErr.String())
	}
	if err := gzipCmd.Wait(); err != nil {
		return errors.Wrapf(err, "gzip: %s", gzipErr.String())
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, mode)
}
