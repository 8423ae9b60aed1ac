package deps

import (
	"github.com/cavaliergopher/grab/v3"
	"github.com/pkg/errors"
)

// HTTPTransport downloads over HTTP(S) with grab, which gives resumable,
// progress-tracked downloads for large inputs (the upstream ISO is
// multi-gigabyte — see spec.md §4.10's ≥7GB floor).
type HTTPTransport struct {
	Client *grab.Client
}

// NewHTTPTransport returns an HTTPTransport using grab's default client.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: grab.NewClient()}
}

func (t *HTTPTransport) Fetch(url, destPath string) error {
	req, err := grab.NewRequest(destPath, url)
	if err != nil {
		return errors.Wrapf(err, "building download request for %s", url)
	}

	resp := t.Client.Do(req)
	if err := resp.Err(); err != nil {
		return errors.Wrapf(err, "downloading %s", url)
	}
	return nil
}
