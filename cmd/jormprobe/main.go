package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/screwyprof/jormprobe/cmd/jormprobe/config"
	"github.com/screwyprof/jormprobe/pkg/jormrest"
	"github.com/screwyprof/jormprobe/pkg/logger"
	"github.com/screwyprof/jormprobe/pkg/pgxdb"
	"github.com/screwyprof/jormprobe/snapshot"
	"github.com/screwyprof/jormprobe/snapshot/store/pgxstore"
)

// These values are overridden at build time using -ldflags
var (
	version = "dev"
	date    = "unknown"
)

func main() {
	// Load configuration
	cfg := config.New()

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "Starting jormprobe",
		slog.String("node", cfg.NodeAddress),
		slog.Bool("oneshot", cfg.Oneshot),
		slog.String("version", version),
		slog.String("date", date),
	)

	// Database connection
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}

	store, storeCloser := pgxstore.New(db)
	defer storeCloser()

	// Node client: transport logs each round-trip, the sink logs bodies at debug
	httpClient := &http.Client{
		Timeout:   cfg.HttpClientTimeout,
		Transport: logger.NewTransport(log, http.DefaultTransport),
	}
	opts := []jormrest.Option{
		jormrest.WithHTTPClient(httpClient),
		jormrest.WithSink(logger.NewSink(log)),
	}
	if cfg.StrictStatus {
		opts = append(opts, jormrest.WithStrictStatus())
	}
	client := jormrest.New(jormrest.ClientConfig{BaseAddress: cfg.NodeAddress}, opts...)

	service := snapshot.NewService(client, store,
		snapshot.WithHistoryLength(cfg.RewardHistoryLength),
		snapshot.WithPollInterval(cfg.PollInterval),
	)

	if cfg.Oneshot {
		snap, err := service.Capture(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Capture failed", slog.Any("error", err))
			storeCloser()
			os.Exit(1)
		}
		log.InfoContext(ctx, "Capture completed",
			slog.Uint64("epoch", uint64(snap.Epoch())),
			slog.Int("rewards", len(snap.Rewards)),
		)
		return
	}

	events, done := service.Start(ctx)

	subCloser := setupEventLogging(ctx, events, log)
	defer subCloser()

	<-done
	log.InfoContext(ctx, "jormprobe stopped gracefully")
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan snapshot.Event, log *slog.Logger) func() {
	return snapshot.NewSubscriber(events,
		snapshot.OnWatchStarted(func(event snapshot.WatchStarted) {
			log.InfoContext(ctx, "Watch started",
				slog.Duration("interval", event.Interval),
				slog.Uint64("historyLength", uint64(event.HistoryLength)),
			)
		}),
		snapshot.OnCaptureCompleted(func(event snapshot.CaptureCompleted) {
			log.InfoContext(ctx, "Capture completed",
				slog.Uint64("epoch", uint64(event.Epoch)),
				slog.Int("rewards", event.Rewards),
				slog.Uint64("totalStake", event.TotalStake),
				slog.Duration("duration", event.Duration),
			)
		}),
		snapshot.OnCaptureError(func(event snapshot.CaptureError) {
			log.ErrorContext(ctx, "Capture failed", slog.Any("error", event.Err))
		}),
		snapshot.OnWatchShutdown(func(event snapshot.WatchShutdown) {
			log.InfoContext(ctx, "Watch stopped",
				slog.String("reason", event.Reason.Error()),
			)
		}),
	)
}
