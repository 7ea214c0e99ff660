package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"reelsync/internal/services"
)

// KeyFrames grabs a representative still frame for each instance.
type KeyFrames struct {
	binary   string
	dir      string
	position float64
	timeout  time.Duration
}

// NewKeyFrames returns an extractor writing into dir. position is the
// fraction of the duration at which the frame is taken.
func NewKeyFrames(binary, dir string, position float64, timeout time.Duration) *KeyFrames {
	if position <= 0 || position >= 1 {
		position = 1.0 / 11.0
	}
	return &KeyFrames{binary: binary, dir: dir, position: position, timeout: timeout}
}

// Name is the file name stored on the instance for fingerprint.
func (k *KeyFrames) Name(fingerprint string) string {
	return "keyframe_" + fingerprint + ".jpg"
}

// Extract writes the frame for the file at path and returns its name. An
// existing frame is reused. A zero duration yields no frame and no error.
func (k *KeyFrames) Extract(ctx context.Context, path, fingerprint string, durationSeconds float64) (string, error) {
	name := k.Name(fingerprint)
	target := filepath.Join(k.dir, name)
	if _, err := os.Stat(target); err == nil {
		return name, nil
	}
	if durationSeconds <= 0 {
		return "", nil
	}
	if err := os.MkdirAll(k.dir, 0o755); err != nil {
		return "", fmt.Errorf("create keyframe dir: %w", err)
	}
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", Offset(durationSeconds, k.position),
		"-i", path,
		"-frames:v", "1",
		"-vf", "scale=1920:1080:force_original_aspect_ratio=decrease",
		target,
	}
	cmd := commandContext(ctx, k.binary, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			return "", services.Wrap(services.ErrToolMissing, "keyframe", "extract", k.binary, err)
		case ctx.Err() != nil:
			return "", services.Wrap(services.ErrTimeout, "keyframe", "extract", path, ctx.Err())
		default:
			return "", services.Wrap(services.ErrExternalTool, "keyframe", "extract", strings.TrimSpace(stderr.String()), err)
		}
	}
	if _, err := os.Stat(target); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "keyframe", "extract", "no frame written", err)
	}
	return name, nil
}

// Offset formats duration*position as HH:MM:SS.
func Offset(durationSeconds, position float64) string {
	total := int(durationSeconds * position)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
