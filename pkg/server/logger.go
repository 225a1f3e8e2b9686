package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// LogWriter persists one log record of a job.
type LogWriter interface {
	InsertLog(ctx context.Context, jobID string, ts time.Time, level, message string, metadata []byte) error
}

// DBLogHandler is a slog.Handler that writes records to the database
type DBLogHandler struct {
	w     LogWriter
	jobID string
	level slog.Leveler
	attrs []slog.Attr
	group string
}

func NewDBLogHandler(w LogWriter, jobID string, level slog.Leveler) *DBLogHandler {
	return &DBLogHandler{w: w, jobID: jobID, level: level}
}

func (h *DBLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.key(a.Key)] = attrValue(a)
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Records outlive the request that produced them.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return h.w.InsertLog(ctx, h.jobID, r.Time, r.Level.String(), r.Message, metaJSON)
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &next
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.group = h.key(name)
	return &next
}

func (h *DBLogHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func attrValue(a slog.Attr) any {
	v := a.Value.Resolve().Any()
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}

// JobLoggers returns a per-job logger factory that writes to base and to w.
func JobLoggers(base *slog.Logger, w LogWriter, level slog.Leveler) func(jobID string) *slog.Logger {
	return func(jobID string) *slog.Logger {
		return slog.New(slogmulti.Fanout(base.Handler(), NewDBLogHandler(w, jobID, level))).With("job_id", jobID)
	}
}
