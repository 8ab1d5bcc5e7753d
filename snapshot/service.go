package snapshot

import (
	"context"
	"fmt"
	"time"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithPollInterval sets the interval between captures in watch mode
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithHistoryLength sets how many trailing epochs of rewards each capture requests
func WithHistoryLength(n uint32) Option {
	return func(s *Service) { s.historyLength = n }
}

// Service captures snapshots once or on an interval
type Service struct {
	api           Client
	store         Store
	clock         Clock
	pollInterval  time.Duration
	historyLength uint32
	events        chan Event
}

// NewService constructs a Service with required dependencies and options.
// By default, it uses a real clock, a 10s poll interval and 10 epochs of history.
func NewService(api Client, store Store, opts ...Option) *Service {
	s := &Service{
		api:           api,
		store:         store,
		clock:         systemClock{},
		pollInterval:  DefaultPollInterval,
		historyLength: DefaultHistoryLength,
		events:        make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture takes one snapshot and stores it
func (s *Service) Capture(ctx context.Context) (Snapshot, error) {
	capturedAt := s.clock.Now()

	stake, err := s.api.StakeDistribution(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrStakeRequestFailed, err)
	}

	rewards, err := s.api.RewardHistory(ctx, s.historyLength)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrRewardsRequestFailed, err)
	}

	snap := Snapshot{
		CapturedAt: capturedAt,
		Stake:      stake,
		Rewards:    rewards,
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	return snap, nil
}

// Start captures immediately and then once per poll interval until ctx is done.
// It returns the events channel and a done channel closed after the events channel.
//
//	events, done := service.Start(ctx)
//	defer func() {
//	  cancel()    // 1. Request shutdown
//	  <-done      // 2. Wait for complete shutdown
//	}()
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(s.events)
		s.run(ctx)
	}()
	return s.events, done
}

func (s *Service) run(ctx context.Context) {
	s.events <- WatchStarted{Interval: s.pollInterval, HistoryLength: s.historyLength}

	s.captureOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.events <- WatchShutdown{Reason: ctx.Err()}
			return
		case <-s.clock.After(s.pollInterval):
			s.captureOnce(ctx)
		}
	}
}

func (s *Service) captureOnce(ctx context.Context) {
	start := s.clock.Now()

	snap, err := s.Capture(ctx)
	if err != nil {
		s.events <- CaptureError{Err: err}
		return
	}

	s.events <- CaptureCompleted{
		Epoch:      snap.Epoch(),
		Rewards:    len(snap.Rewards),
		TotalStake: snap.Stake.Stake.Total(),
		Duration:   s.clock.Now().Sub(start),
	}
}
