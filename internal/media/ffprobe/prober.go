package ffprobe

import (
	"context"
	"time"

	"reelsync/internal/media"
)

// Prober runs ffprobe with a ceiling on each invocation.
type Prober struct {
	binary  string
	timeout time.Duration
}

// NewProber returns a Prober for binary. A non-positive timeout disables the ceiling.
func NewProber(binary string, timeout time.Duration) *Prober {
	return &Prober{binary: binary, timeout: timeout}
}

// Probe inspects path and returns its normalized technical metadata.
func (p *Prober) Probe(ctx context.Context, path string) (media.Technical, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	result, err := Inspect(ctx, p.binary, path)
	if err != nil {
		return media.Technical{}, err
	}
	return Normalize(result)
}
