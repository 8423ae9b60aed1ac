package deps

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withBackoff wraps a single download attempt in exponential backoff retry,
// bounded by a two-minute total elapsed time; git clones are not passed
// through it. The original resolver (original_source/src/deps/mod.rs)
// has no retry loop; SPEC_FULL.md §2 calls this a reasonable hardening the
// redesign flags invite.
func withBackoff(op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	return backoff.Retry(op, b)
}
