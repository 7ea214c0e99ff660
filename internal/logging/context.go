package logging

import (
	"context"
	"log/slog"

	"reelsync/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType names the kind of event so log consumers can filter without parsing messages.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRunID identifies a reconciliation pass or daemon session.
	FieldRunID = "run_id"
	// FieldStage is the pipeline stage (scan, reconcile, ingest, transcode, enrich).
	FieldStage = "stage"
	// FieldPath is the media file a log line refers to.
	FieldPath = "path"
	// FieldCategory is the library category (movie or series).
	FieldCategory = "category"
	// FieldFingerprint is the partial-content hash of a media file.
	FieldFingerprint = "fingerprint"
	// FieldTitleKey is the catalog identity of a title.
	FieldTitleKey = "title_key"
	// FieldDisposition records how a failure was handled (retry, skip, drop, abort).
	FieldDisposition = "disposition"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if category, ok := services.CategoryFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCategory, category))
	}
	if path, ok := services.PathFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPath, path))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// Failure returns the attributes every failure log carries: the error, its
// disposition, and an operator hint.
func Failure(err error, hint string) []Attr {
	attrs := []Attr{Error(err)}
	if disposition := services.Classify(err); disposition != "" {
		attrs = append(attrs, String(FieldDisposition, string(disposition)))
	}
	if hint != "" {
		attrs = append(attrs, String(FieldErrorHint, hint))
	}
	return attrs
}
