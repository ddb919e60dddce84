// Package auditlog writes the import protocol: one key=value line per
// processed row, appended to a file named after the batch start time.
package auditlog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/heartmarshall/account-import/internal/domain"
)

const fileMode = 0o640

// Writer appends audit entries to the protocol file. The file is opened and
// closed for every entry so that a crash loses at most the current row.
// Write never fails: problems are reported to the process logger.
type Writer struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	buf     bytes.Buffer
	handler slog.Handler
}

// New returns a Writer for "<basePath>.<start in epoch millis>".
func New(basePath string, start time.Time, logger *slog.Logger) *Writer {
	w := &Writer{
		path: basePath + "." + strconv.FormatInt(start.UnixMilli(), 10),
		log:  logger.With("adapter", "auditlog"),
	}
	w.handler = slog.NewTextHandler(&w.buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})
	return w
}

// Path returns the protocol file path.
func (w *Writer) Path() string { return w.path }

// Write appends one line for entry.
func (w *Writer) Write(ctx context.Context, entry domain.AuditEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
	if err := w.handler.Handle(ctx, record(entry)); err != nil {
		w.log.ErrorContext(ctx, "render audit entry", slog.Int("row", entry.Row), slog.String("error", err.Error()))
		return
	}

	if err := w.appendLine(w.buf.Bytes()); err != nil {
		w.log.ErrorContext(ctx, "write audit entry",
			slog.String("path", w.path),
			slog.Int("row", entry.Row),
			slog.String("error", err.Error()),
		)
	}
}

func (w *Writer) appendLine(line []byte) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func record(e domain.AuditEntry) slog.Record {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	r := slog.NewRecord(ts, levelFor(e.Status), "row processed", 0)
	r.AddAttrs(
		slog.Int("row", e.Row),
		slog.String("status", e.Status.String()),
		slog.String("username", e.Username),
	)
	if e.LegacyID != nil {
		r.AddAttrs(slog.Int64("legacy_id", *e.LegacyID))
	}
	if e.InternalID != "" {
		r.AddAttrs(slog.String("internal_id", e.InternalID))
	}
	if e.Kind != "" {
		r.AddAttrs(slog.String("kind", e.Kind))
	}
	if e.Reason != "" {
		r.AddAttrs(slog.String("reason", e.Reason))
	}
	if len(e.Partial) > 0 {
		parts := make([]string, len(e.Partial))
		for i, res := range e.Partial {
			parts[i] = res.String()
		}
		r.AddAttrs(slog.String("partial", strings.Join(parts, ",")))
	}
	return r
}

func levelFor(s domain.AuditStatus) slog.Level {
	switch s {
	case domain.AuditStatusFailed:
		return slog.LevelWarn
	case domain.AuditStatusAborted:
		return slog.LevelError
	}
	return slog.LevelInfo
}
