package jormrest

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// EntryKind tells a request entry from a response entry
type EntryKind int

const (
	EntryRequest EntryKind = iota + 1
	EntryResponse
)

// Entry is one diagnostic record produced by the client
type Entry struct {
	Kind   EntryKind
	URL    string
	Status int    // zero for requests
	Body   string // raw response body, empty for requests
}

// Sink receives the URL of every request and the raw body of every response
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, e Entry)

func (f SinkFunc) Record(ctx context.Context, e Entry) { f(ctx, e) }

// NopSink discards everything
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) {}

// WriterSink prints entries as plain lines to w
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Record(_ context.Context, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case EntryRequest:
		_, _ = fmt.Fprintf(s.w, "Sending GET request: '%s'\n", e.URL)
	case EntryResponse:
		_, _ = fmt.Fprintf(s.w, "Response: %s\n", e.Body)
	}
}
