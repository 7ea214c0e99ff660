package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, creating the parent directory when needed.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, mode); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// RemoveWithRetry deletes path, retrying up to attempts times with delay
// between tries. A path that is already gone counts as removed. The last
// error is returned when every attempt fails.
func RemoveWithRetry(ctx context.Context, path string, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("remove %s after %d attempts: %w", path, attempts, lastErr)
}

// ErrNotReady is returned by WaitReady when the file kept changing.
var ErrNotReady = errors.New("file not ready")

// WaitReady polls path until two consecutive checks see the same non-zero
// size and the file can be opened for reading. A file that is still being
// copied fails with ErrNotReady after attempts checks.
func WaitReady(ctx context.Context, path string, attempts int, delay time.Duration) (os.FileInfo, error) {
	if attempts < 2 {
		attempts = 2
	}
	var (
		lastSize int64 = -1
		lastErr  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		info, err := os.Stat(path)
		switch {
		case err != nil:
			if errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			lastErr = err
		case info.IsDir():
			return nil, fmt.Errorf("%s is a directory", path)
		case info.Size() > 0 && info.Size() == lastSize:
			openErr := probeOpen(path)
			if openErr == nil {
				return info, nil
			}
			lastErr = openErr
		default:
			lastSize = info.Size()
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotReady, path, lastErr)
	}
	return nil, fmt.Errorf("%w: %s: size still changing", ErrNotReady, path)
}

func probeOpen(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
