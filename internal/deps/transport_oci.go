package deps

import (
	"archive/tar"
	"io"
	"os"
	"strings"

	"github.com/distribution/reference"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/pkg/errors"
)

// OCITransport fetches a helper binary or the busybox static binary
// declared as an oci://registry/image:tag reference: the image's single
// binary layer is extracted to destPath.
type OCITransport struct{}

func (t *OCITransport) Fetch(rawURL, destPath string) error {
	ref := strings.TrimPrefix(rawURL, "oci://")
	if _, err := reference.ParseNormalizedNamed(ref); err != nil {
		return errors.Wrapf(err, "invalid OCI image reference %q", ref)
	}

	img, err := crane.Pull(ref)
	if err != nil {
		return errors.Wrapf(err, "pulling %s", ref)
	}

	layers, err := img.Layers()
	if err != nil {
		return errors.Wrap(err, "listing image layers")
	}
	if len(layers) == 0 {
		return errors.Errorf("%s has no layers", ref)
	}

	// The convention for single-binary helper images is one layer whose
	// tar contains exactly the binary at its root.
	last := layers[len(layers)-1]
	rc, err := last.Uncompressed()
	if err != nil {
		return errors.Wrap(err, "reading image layer")
	}
	defer rc.Close()

	return extractSingleBinary(rc, destPath)
}

// extractSingleBinary reads r as a tar stream and copies the first regular
// file entry it finds to destPath — the convention for single-binary
// helper images is one layer whose tar contains exactly that file.
func extractSingleBinary(r io.Reader, destPath string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return errors.New("image layer contained no regular file to extract")
		}
		if err != nil {
			return errors.Wrap(err, "reading tar entry")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		if err := os.MkdirAll(parentDir(destPath), 0755); err != nil {
			return err
		}
		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, tr)
		return err
	}
}

func parentDir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "."
	}
	return p[:i]
}
