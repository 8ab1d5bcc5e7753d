package logger

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs every outgoing request
type Transport struct {
	log  *slog.Logger
	next http.RoundTripper
}

// NewTransport wraps next (http.DefaultTransport when nil) with request logging
func NewTransport(log *slog.Logger, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{log: log, next: next}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(r)

	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("url", r.URL.String()),
		slog.Duration("duration", time.Since(start)),
	}

	level := slog.LevelInfo
	switch {
	case err != nil:
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", err.Error()))
	default:
		attrs = append(attrs,
			slog.Int("status", resp.StatusCode),
			slog.Int64("bytes_in", max(0, resp.ContentLength)),
		)
		if resp.StatusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
	}

	// Log with constant message - let structured fields tell the story
	t.log.LogAttrs(r.Context(), level, "HTTP", attrs...)

	return resp, err
}
