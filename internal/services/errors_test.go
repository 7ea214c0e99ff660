package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"reelsync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "transcode", "encode", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcode", "encode", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Disposition
	}{
		{"nil", nil, ""},
		{"transient", services.Wrap(services.ErrTransient, "identity", "fingerprint", "locked", nil), services.DispositionRetry},
		{"probe", services.Wrap(services.ErrProbe, "ffprobe", "parse", "", nil), services.DispositionSkip},
		{"encode", services.Wrap(services.ErrEncode, "transcode", "encode", "", nil), services.DispositionDrop},
		{"timeout", services.Wrap(services.ErrTimeout, "transcode", "encode", "", nil), services.DispositionDrop},
		{"tool missing", services.Wrap(services.ErrToolMissing, "ffprobe", "exec", "", nil), services.DispositionAbort},
		{"catalog", fmt.Errorf("ingest: %w", services.Wrap(services.ErrCatalog, "catalog", "ingest", "", nil)), services.DispositionAbort},
		{"plain", errors.New("other"), services.DispositionAbort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
	if !services.IsRetryable(services.Wrap(services.ErrTransient, "", "", "x", nil)) {
		t.Fatal("expected transient error to be retryable")
	}
}
