package logger

import (
	"context"
	"log/slog"

	"github.com/screwyprof/jormprobe/pkg/jormrest"
)

// Sink records jormrest diagnostics through slog at debug level
type Sink struct {
	log *slog.Logger
}

// NewSink creates a jormrest.Sink backed by log
func NewSink(log *slog.Logger) *Sink {
	return &Sink{log: log}
}

func (s *Sink) Record(ctx context.Context, e jormrest.Entry) {
	switch e.Kind {
	case jormrest.EntryRequest:
		s.log.DebugContext(ctx, "Sending GET request", slog.String("url", e.URL))
	case jormrest.EntryResponse:
		s.log.DebugContext(ctx, "Response",
			slog.String("url", e.URL),
			slog.Int("status", e.Status),
			slog.String("body", e.Body),
		)
	}
}
