package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrToolMissing   = errors.New("external tool missing")
	ErrProbe         = errors.New("probe output unusable")
	ErrEncode        = errors.New("encode failed")
	ErrCatalog       = errors.New("catalog write failed")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Disposition tells callers what to do with a failed unit of work.
type Disposition string

const (
	// DispositionRetry means the condition is temporary (file locked, still copying).
	DispositionRetry Disposition = "retry"
	// DispositionSkip means this file or record is skipped and the batch continues.
	DispositionSkip Disposition = "skip"
	// DispositionDrop means the job is discarded and its inputs left untouched.
	DispositionDrop Disposition = "drop"
	// DispositionAbort means the operation cannot proceed until an operator acts.
	DispositionAbort Disposition = "abort"
)

// Classify maps an error onto a disposition. Unknown errors abort the
// operation but never the process.
func Classify(err error) Disposition {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransient):
		return DispositionRetry
	case errors.Is(err, ErrProbe), errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return DispositionSkip
	case errors.Is(err, ErrEncode), errors.Is(err, ErrTimeout):
		return DispositionDrop
	default:
		return DispositionAbort
	}
}

// IsRetryable reports whether err is a transient condition worth retrying.
func IsRetryable(err error) bool {
	return Classify(err) == DispositionRetry
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
