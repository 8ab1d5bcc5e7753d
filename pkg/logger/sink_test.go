package logger_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/jormprobe/pkg/jormrest"
	"github.com/screwyprof/jormprobe/pkg/logger"
)

func TestSink(t *testing.T) {
	t.Parallel()

	t.Run("it logs response bodies at debug level", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
		sink := logger.NewSink(log)

		// Act
		sink.Record(t.Context(), jormrest.Entry{Kind: jormrest.EntryResponse, URL: "http://node/v0/stake", Status: 200, Body: "{}"})

		// Assert
		entry := parseLogEntry(t, logBuffer.String())
		assert.Equal(t, "DEBUG", entry.Level)
		assert.Equal(t, "Response", entry.Msg)
		assert.Equal(t, "{}", entry.Body)
		assert.Equal(t, 200, entry.Status)
	})

	t.Run("it stays silent above debug level", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelInfo}))
		sink := logger.NewSink(log)

		// Act
		sink.Record(t.Context(), jormrest.Entry{Kind: jormrest.EntryRequest, URL: "http://node/v0/stake"})

		// Assert
		assert.Empty(t, logBuffer.String())
	})
}
