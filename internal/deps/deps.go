// Package deps implements the dependency resolver (component J): for each
// external input (kernel source, upstream ISO, helper tools) it tries, in
// order, an environment-variable override, a monorepo-sibling directory, a
// cached download, and finally a fresh download/clone — verifying
// existence/checksum where declared.
//
// Grounded on original_source/src/deps/mod.rs.
package deps

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/types"
)

// SourceType annotates how a descriptor was ultimately resolved.
type SourceType int

const (
	SourceEnvVar SourceType = iota
	SourceSibling
	SourceCached
	SourceDownloaded
)

func (s SourceType) String() string {
	switch s {
	case SourceEnvVar:
		return "env-var"
	case SourceSibling:
		return "sibling"
	case SourceCached:
		return "cached"
	case SourceDownloaded:
		return "downloaded"
	default:
		return "unknown"
	}
}

// Descriptor is one external-input dependency, per spec.md §3.
type Descriptor struct {
	// Name is the logical name, used for error messages and cache paths.
	Name string
	// EnvVar, when set in the environment, is used verbatim.
	EnvVar string
	// Sibling is the sibling-directory name tried relative to BaseDir
	// (monorepo convention: "../<Sibling>").
	Sibling string
	// URL is the download/clone source when nothing else resolves.
	URL string
	// SHA256 is the expected checksum of a downloaded file, when declared.
	// Empty means no checksum verification (e.g. a git clone).
	SHA256 string
	// IsGitRepo marks URL as a git remote to clone rather than a file to
	// download.
	IsGitRepo bool
	// Validate, if set, additionally validates a resolved path (e.g. "has
	// a Makefile at its root", "executable bit set and responds to
	// --version").
	Validate func(path string) error
}

// Resolved is the outcome of resolving one Descriptor.
type Resolved struct {
	Path   string
	Source SourceType
}

// Resolver implements the resolution chain and the transports behind the
// "Downloaded" branch.
type Resolver struct {
	BaseDir   string
	CacheDir  string
	Logger    types.Logger
	Runner    types.Runner
	Transport Transport
}

// Transport is the pluggable download backend: HTTP(S), scp, S3, or an OCI
// image reference, selected by URL scheme (SPEC_FULL.md §2).
type Transport interface {
	// Fetch downloads url to destPath, creating parent directories as
	// needed. Retried with exponential backoff by the caller.
	Fetch(url, destPath string) error
}

// New returns a Resolver rooted at baseDir, with project as the XDG cache
// subdirectory name (~/.cache/<project>/). Loads a .env file from baseDir
// if present (godotenv), mirroring the original's dotenvy::dotenv().
func New(baseDir, project string, logger types.Logger, runner types.Runner, transport Transport) *Resolver {
	_ = godotenv.Load(filepath.Join(baseDir, ".env"))

	cacheDir := filepath.Join(xdg.CacheHome, project)
	return &Resolver{
		BaseDir:   baseDir,
		CacheDir:  cacheDir,
		Logger:    logger,
		Runner:    runner,
		Transport: transport,
	}
}

// Resolve runs the full chain for d, returning the first path that
// validates.
func (r *Resolver) Resolve(d Descriptor) (Resolved, error) {
	if d.EnvVar != "" {
		if v := os.Getenv(d.EnvVar); v != "" {
			if err := r.validate(d, v); err == nil {
				r.Logger.Debugf("resolved %s via env var %s: %s", d.Name, d.EnvVar, v)
				return Resolved{Path: v, Source: SourceEnvVar}, nil
			} else {
				r.Logger.Warnf("%s=%s set but failed validation: %v", d.EnvVar, v, err)
			}
		}
	}

	if d.Sibling != "" {
		p := filepath.Join(r.BaseDir, "..", d.Sibling)
		if err := r.validate(d, p); err == nil {
			r.Logger.Debugf("resolved %s via sibling directory: %s", d.Name, p)
			return Resolved{Path: p, Source: SourceSibling}, nil
		}
	}

	cached := filepath.Join(r.CacheDir, d.Name)
	if err := r.validate(d, cached); err == nil {
		r.Logger.Debugf("resolved %s via cache: %s", d.Name, cached)
		return Resolved{Path: cached, Source: SourceCached}, nil
	}

	if d.URL == "" {
		return Resolved{}, errors.Errorf("could not resolve %s: no env var, sibling, or cached copy, and no download URL declared", d.Name)
	}

	dest := cached
	if err := r.download(d, dest); err != nil {
		return Resolved{}, errors.Wrapf(err, "downloading %s", d.Name)
	}
	if err := r.validate(d, dest); err != nil {
		return Resolved{}, errors.Wrapf(err, "downloaded %s failed validation", d.Name)
	}
	return Resolved{Path: dest, Source: SourceDownloaded}, nil
}

func (r *Resolver) validate(d Descriptor, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if d.SHA256 != "" && !info.IsDir() {
		sum, err := sha256sum(path)
		if err != nil {
			return err
		}
		if sum != d.SHA256 {
			return errors.Errorf("checksum mismatch: expected %s, got %s", d.SHA256, sum)
		}
	}
	if d.Validate != nil {
		return d.Validate(path)
	}
	return nil
}

func (r *Resolver) download(d Descriptor, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	if d.IsGitRepo {
		return r.cloneGit(d.URL, dest)
	}

	return withBackoff(func() error {
		return r.Transport.Fetch(d.URL, dest)
	})
}

func (r *Resolver) cloneGit(url, dest string) error {
	if r.Runner != nil {
		_, _, err := r.Runner.Run("git", "clone", "--depth", "1", url, dest)
		return err
	}
	cmd := exec.Command("git", "clone", "--depth", "1", url, dest)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

func sha256sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidateKernelTree accepts a path when a Makefile is present at its root.
func ValidateKernelTree(path string) error {
	if _, err := os.Stat(filepath.Join(path, "Makefile")); err != nil {
		return errors.Errorf("no Makefile at %s: not a kernel source tree", path)
	}
	return nil
}

// ValidateExecutable returns a Validate hook accepting files that carry an
// executable bit and respond to --version (falling back to --help). runner
// may be nil, in which case only the mode bits are checked.
func ValidateExecutable(runner types.Runner) func(string) error {
	return func(path string) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() || info.Mode().Perm()&0111 == 0 {
			return errors.Errorf("%s is not an executable file", path)
		}
		if runner == nil {
			return nil
		}
		if _, _, err := runner.Run(path, "--version"); err == nil {
			return nil
		}
		if _, _, err := runner.Run(path, "--help"); err == nil {
			return nil
		}
		return errors.Errorf("%s does not respond to --version or --help", path)
	}
}

// SchemeTransport dispatches Fetch to a scheme-specific Transport based on
// url's prefix: "oci://", "scp://", "s3://", anything else is HTTP(S).
type SchemeTransport struct {
	HTTP Transport
	SCP  Transport
	S3   Transport
	OCI  Transport
}

func (s *SchemeTransport) Fetch(url, destPath string) error {
	switch {
	case strings.HasPrefix(url, "oci://"):
		return s.OCI.Fetch(url, destPath)
	case strings.HasPrefix(url, "scp://"):
		return s.SCP.Fetch(url, destPath)
	case strings.HasPrefix(url, "s3://"):
		return s.S3.Fetch(url, destPath)
	default:
		return s.HTTP.Fetch(url, destPath)
	}
}
