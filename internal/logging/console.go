package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// consoleHandler renders one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO watcher: queued for transcode event_type=transcode_queued path=/lib/a.mkv
//
// The component becomes a prefix and the media path, when present, is always
// the last field so lines about the same file line up when grepping.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    string
	fields    []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, 0, len(h.fields)+record.NumAttrs())
	fields = append(fields, h.fields...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = collect(fields, h.prefix, attr)
		return true
	})

	component := ""
	var path *field
	var line strings.Builder
	rest := fields[:0:0]
	for i := range fields {
		switch fields[i].key {
		case FieldComponent:
			if component == "" {
				component = plain(fields[i].value)
			}
		case FieldPath:
			path = &fields[i]
		default:
			rest = append(rest, fields[i])
		}
	}

	stamp := record.Time
	if stamp.IsZero() {
		stamp = time.Now()
	}
	line.WriteString(stamp.UTC().Format(time.RFC3339))
	line.WriteByte(' ')
	line.WriteString(levelName(record.Level))
	line.WriteByte(' ')
	if component != "" {
		line.WriteString(component)
		line.WriteString(": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)

	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	if path != nil {
		rest = append(rest, *path)
	}
	for _, f := range rest {
		line.WriteByte(' ')
		line.WriteString(f.key)
		line.WriteByte('=')
		line.WriteString(render(f.value))
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = append([]field(nil), h.fields...)
	for _, attr := range attrs {
		next.fields = collect(next.fields, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

// collect flattens attr into dst, naming grouped members "group.key".
func collect(dst []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		nested := prefix
		if attr.Key != "" {
			nested = joinKey(prefix, attr.Key)
		}
		for _, member := range attr.Value.Group() {
			dst = collect(dst, nested, member)
		}
		return dst
	}
	key := joinKey(prefix, attr.Key)
	if key == "" {
		return dst
	}
	return append(dst, field{key: key, value: attr.Value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

// plain renders a value without quoting.
func plain(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// render quotes values a log parser would otherwise split.
func render(v slog.Value) string {
	text := plain(v)
	if v.Kind() == slog.KindString || v.Kind() == slog.KindAny {
		if text == "" || strings.ContainsFunc(text, func(r rune) bool {
			return unicode.IsSpace(r) || r == '=' || r == '"' || !unicode.IsPrint(r)
		}) {
			return strconv.Quote(text)
		}
	}
	return text
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
