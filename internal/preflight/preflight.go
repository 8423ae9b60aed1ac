// Package preflight implements the preflight validator (component L): it
// runs before any build stage, checks host tools, writable directories,
// upstream ISO completeness, kconfig sanity, and the init script template,
// and returns a structured report. Overall success requires no Fail.
//
// Grounded on original_source/src/preflight.rs and
// original_source/src/preflight/validators.rs; thresholds and messages are
// ported verbatim.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/jaypipes/ghw"

	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/types"
)

// Status is the per-check outcome.
type Status int

const (
	Pass Status = iota
	Fail
	Warn
	Skip
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Warn:
		return "WARN"
	case Skip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Check is one line of the preflight report.
type Check struct {
	Name    string
	Status  Status
	Message string
}

// Report is the full structured preflight result.
type Report struct {
	Checks []Check
}

// OK reports overall success: no Fail status present.
func (r *Report) OK() bool {
	for _, c := range r.Checks {
		if c.Status == Fail {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, status Status, format string, args ...interface{}) {
	r.Checks = append(r.Checks, Check{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

// Failures returns the subset of checks that failed.
func (r *Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status == Fail {
			out = append(out, c)
		}
	}
	return out
}

// Input bundles everything preflight needs to validate before a build.
// InitScriptSource carries the embedded init template's content directly;
// InitScriptPath reads it from disk instead (whichever is set).
type Input struct {
	OutputDir        string
	DownloadsDir     string
	UpstreamISOPath  string
	KconfigPath      string
	InitScriptPath   string
	InitScriptSource string
}

// Runner runs every preflight check and returns the assembled report.
type Runner struct {
	ProcRunner types.Runner
	Logger     types.Logger
}

// New builds a preflight Runner.
func New(procRunner types.Runner, logger types.Logger) *Runner {
	return &Runner{ProcRunner: procRunner, Logger: logger}
}

// Run executes every required check against in and returns the report.
func (r *Runner) Run(in Input) *Report {
	report := &Report{}

	r.checkHostTools(report)
	r.checkWritableDir(report, "output directory", in.OutputDir)
	r.checkWritableDir(report, "downloads directory", in.DownloadsDir)
	r.checkDiskSpace(report, in.OutputDir)
	if in.UpstreamISOPath != "" {
		r.checkUpstreamISO(report, in.UpstreamISOPath)
	}
	if in.KconfigPath != "" {
		r.checkKconfig(report, in.KconfigPath)
	}
	switch {
	case in.InitScriptSource != "":
		r.checkInitScriptContent(report, in.InitScriptSource)
	case in.InitScriptPath != "":
		r.checkInitScript(report, in.InitScriptPath)
	}

	return report
}

func (r *Runner) checkHostTools(report *Report) {
	for _, tool := range constants.RequiredHostTools {
		if _, err := r.ProcRunner.LookPath(tool); err != nil {
			report.add("host-tool:"+tool, Fail, "%v", err)
			continue
		}
		report.add("host-tool:"+tool, Pass, "found on PATH")
	}

	foundPacker := false
	var triedNames []string
	for _, tool := range constants.SquashfsOrErofsTools {
		triedNames = append(triedNames, tool)
		if _, err := r.ProcRunner.LookPath(tool); err == nil {
			foundPacker = true
			report.add("host-tool:"+tool, Pass, "found on PATH")
		}
	}
	if !foundPacker {
		report.add("host-tool:packer", Fail, "none of %v found on PATH; install squashfs-tools or erofs-utils", triedNames)
	}
}

func (r *Runner) checkWritableDir(report *Report, label, dir string) {
	if dir == "" {
		report.add(label, Skip, "no path configured")
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		report.add(label, Fail, "cannot create %s: %v", dir, err)
		return
	}
	probe := filepath.Join(dir, ".preflight-write-test")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		report.add(label, Fail, "%s is not writable: %v", dir, err)
		return
	}
	_ = os.Remove(probe)
	report.add(label, Pass, "%s is writable", dir)
}

func (r *Runner) checkDiskSpace(report *Report, dir string) {
	if dir == "" {
		report.add("disk-space", Skip, "no output directory configured")
		return
	}
	block, err := ghw.Block()
	if err != nil {
		report.add("disk-space", Warn, "could not probe block devices: %v", err)
		return
	}
	var total uint64
	for _, disk := range block.Disks {
		total += disk.SizeBytes
	}
	report.add("disk-space", Pass, "host block storage: %s across %d disk(s)", humanize.Bytes(total), len(block.Disks))
}

// checkUpstreamISO validates size and container type. The declared
// SHA-256 and expected size floor (≥7GB) are spec.md §4.10's verification
// rule; a partial download must fail even though the file exists
// (end-to-end scenario 3).
func (r *Runner) checkUpstreamISO(report *Report, path string) {
	info, err := os.Stat(path)
	if err != nil {
		report.add("upstream-iso", Fail, "ISO not found at %s: %v", path, err)
		return
	}

	sizeGB := float64(info.Size()) / (1024 * 1024 * 1024)
	if sizeGB < constants.MinUpstreamISOSizeGB {
		report.add("upstream-iso", Fail,
			"ISO is only %.2f GB (expected ~8.6 GB) – likely partial download", sizeGB)
		return
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		report.add("upstream-iso", Warn, "could not detect file type: %v", err)
	} else if !strings.Contains(mt.String(), "iso9660") && mt.String() != "application/octet-stream" {
		report.add("upstream-iso", Fail, "expected an ISO-9660 image, detected %s (likely a failed download saved an error page)", mt.String())
		return
	}

	report.add("upstream-iso", Pass, "%s is %s (%.2f GB)", path, humanize.Bytes(uint64(info.Size())), sizeGB)
}

// checkKconfig validates the project's kconfig file has enough CONFIG_
// lines and the critical options LevitateOS needs to boot at all.
func (r *Runner) checkKconfig(report *Report, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		report.add("kconfig", Fail, "kconfig not found at %s: %v", path, err)
		return
	}

	lines := strings.Split(string(data), "\n")
	configLines := 0
	present := make(map[string]bool)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "CONFIG_") && !strings.HasPrefix(trimmed, "# CONFIG_") {
			continue
		}
		configLines++
		for _, opt := range constants.CriticalKconfigOptions {
			if strings.HasPrefix(trimmed, opt+"=") {
				present[opt] = true
			}
		}
	}

	if configLines < constants.MinKconfigOptionCount {
		report.add("kconfig", Fail, "kconfig has only %d CONFIG_ lines (need >= %d)", configLines, constants.MinKconfigOptionCount)
		return
	}

	var missing []string
	for _, opt := range constants.CriticalKconfigOptions {
		if !present[opt] {
			missing = append(missing, opt)
		}
	}
	if len(missing) > 0 {
		report.add("kconfig", Fail, "Missing critical option: %s", missing[0])
		return
	}

	report.add("kconfig", Pass, "%d CONFIG_ lines, all critical options present", configLines)
}

// checkInitScript validates the live initramfs init template has a
// shebang and both required invocations.
func (r *Runner) checkInitScript(report *Report, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		report.add("init-script", Fail, "init script not found at %s: %v", path, err)
		return
	}
	r.checkInitScriptContent(report, string(data))
}

func (r *Runner) checkInitScriptContent(report *Report, content string) {
	if !strings.HasPrefix(content, "#!") {
		report.add("init-script", Fail, "No shebang found")
		return
	}
	if !strings.Contains(content, "mount") {
		report.add("init-script", Fail, "init script does not invoke mount")
		return
	}
	if !strings.Contains(content, "switch_root") {
		report.add("init-script", Fail, "init script does not invoke switch_root")
		return
	}

	codeLines := 0
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if t != "" && !strings.HasPrefix(t, "#") {
			codeLines++
		}
	}
	if codeLines < constants.MinInitScriptCodeLines {
		report.add("init-script", Warn, "init script has only %d code lines, unusually small", codeLines)
		return
	}

	report.add("init-script", Pass, "shebang, mount, and switch_root present")
}
