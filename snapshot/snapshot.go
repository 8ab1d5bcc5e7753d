// Package snapshot records what a node reports about stake and rewards so that
// an integration run leaves evidence behind.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/screwyprof/jormprobe/pkg/jormrest"
)

// Sentinel errors for failure cases
var (
	ErrStakeRequestFailed   = errors.New("stake distribution request failed")
	ErrRewardsRequestFailed = errors.New("reward history request failed")
	ErrSaveFailed           = errors.New("save snapshot failed")
)

// Default configuration values
const (
	DefaultHistoryLength = uint32(10)
	DefaultPollInterval  = 10 * time.Second
)

// Client reads from the node
// --------------------------
type Client interface {
	StakeDistribution(ctx context.Context) (jormrest.StakeDistributionInfo, error)
	RewardHistory(ctx context.Context, length uint32) ([]jormrest.EpochRewardsInfo, error)
}

// Store persists snapshots
type Store interface {
	// SaveSnapshot stores the stake distribution and every reward entry. Re-saving an epoch overwrites it.
	SaveSnapshot(ctx context.Context, s Snapshot) error
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// Snapshot is one capture of node state
type Snapshot struct {
	CapturedAt time.Time
	Stake      jormrest.StakeDistributionInfo
	Rewards    []jormrest.EpochRewardsInfo
}

// Epoch is the epoch the stake distribution was reported for
func (s Snapshot) Epoch() uint32 {
	return s.Stake.Epoch
}

// Event represents a service lifecycle event
// ------------------------------------------
type Event any

type WatchStarted struct {
	Interval      time.Duration
	HistoryLength uint32
}

type CaptureCompleted struct {
	Epoch      uint32
	Rewards    int
	TotalStake uint64
	Duration   time.Duration
}

type CaptureError struct {
	Err error
}

type WatchShutdown struct {
	Reason error // Why shutdown occurred (ctx.Err())
}
