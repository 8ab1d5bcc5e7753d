// Package dbrow maps snapshot data to and from database rows
package dbrow

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/screwyprof/jormprobe/pkg/jormrest"
)

// ErrAmountOutOfRange is returned for amounts that do not fit a BIGINT column
var ErrAmountOutOfRange = errors.New("amount out of range")

// StakeDistribution represents a stake_distributions record
type StakeDistribution struct {
	Epoch      int64     `db:"epoch"`
	Dangling   int64     `db:"dangling"`
	Unassigned int64     `db:"unassigned"`
	Extra      []byte    `db:"extra"`
	CapturedAt time.Time `db:"captured_at"`
}

// StakePool represents a stake_pools record
type StakePool struct {
	PoolID string `db:"pool_id"`
	Amount int64  `db:"amount"`
}

// EpochRewards represents an epoch_rewards record
type EpochRewards struct {
	Epoch      int64     `db:"epoch"`
	Drawn      int64     `db:"drawn"`
	Fees       int64     `db:"fees"`
	Treasury   int64     `db:"treasury"`
	Value      int64     `db:"value"`
	Extra      []byte    `db:"extra"`
	CapturedAt time.Time `db:"captured_at"`
}

// PoolRewards represents an epoch_pool_rewards record
type PoolRewards struct {
	PoolID      string `db:"pool_id"`
	Taxed       int64  `db:"taxed"`
	Distributed int64  `db:"distributed"`
}

// AccountRewards represents an epoch_account_rewards record
type AccountRewards struct {
	Account string `db:"account"`
	Amount  int64  `db:"amount"`
}

// FromStake converts a stake distribution into its header row
func FromStake(info jormrest.StakeDistributionInfo, capturedAt time.Time) (StakeDistribution, error) {
	extra, err := encodeExtra(info.Extra)
	if err != nil {
		return StakeDistribution{}, err
	}
	dangling, err := bigint("dangling", info.Stake.Dangling)
	if err != nil {
		return StakeDistribution{}, err
	}
	unassigned, err := bigint("unassigned", info.Stake.Unassigned)
	if err != nil {
		return StakeDistribution{}, err
	}
	return StakeDistribution{
		Epoch:      int64(info.Epoch),
		Dangling:   dangling,
		Unassigned: unassigned,
		Extra:      extra,
		CapturedAt: capturedAt,
	}, nil
}

// StakePoolsToRows converts pool stakes to [][]any for pgx.CopyFromRows (epoch, pool_id, amount)
func StakePoolsToRows(info jormrest.StakeDistributionInfo) ([][]any, error) {
	rows := make([][]any, len(info.Stake.Pools))
	for i, p := range info.Stake.Pools {
		amount, err := bigint(p.PoolID, p.Amount)
		if err != nil {
			return nil, err
		}
		rows[i] = []any{int64(info.Epoch), p.PoolID, amount}
	}
	return rows, nil
}

// ToStake rebuilds the stake distribution from its rows
func ToStake(head StakeDistribution, pools []StakePool) (jormrest.StakeDistributionInfo, error) {
	extra, err := decodeExtra(head.Extra)
	if err != nil {
		return jormrest.StakeDistributionInfo{}, err
	}

	info := jormrest.StakeDistributionInfo{
		Epoch: uint32(head.Epoch),
		Stake: jormrest.StakeDistribution{
			Dangling:   jormrest.Amount(head.Dangling),
			Unassigned: jormrest.Amount(head.Unassigned),
		},
		Extra: extra,
	}
	if len(pools) > 0 {
		info.Stake.Pools = make([]jormrest.PoolStake, len(pools))
		for i, p := range pools {
			info.Stake.Pools[i] = jormrest.PoolStake{PoolID: p.PoolID, Amount: jormrest.Amount(p.Amount)}
		}
	}
	return info, nil
}

// FromRewards converts reward info into its header row
func FromRewards(info jormrest.EpochRewardsInfo, capturedAt time.Time) (EpochRewards, error) {
	extra, err := encodeExtra(info.Extra)
	if err != nil {
		return EpochRewards{}, err
	}
	head := EpochRewards{Epoch: int64(info.Epoch), Extra: extra, CapturedAt: capturedAt}
	for _, f := range []struct {
		name string
		in   jormrest.Amount
		out  *int64
	}{
		{"drawn", info.Drawn, &head.Drawn},
		{"fees", info.Fees, &head.Fees},
		{"treasury", info.Treasury, &head.Treasury},
		{"value", info.Value, &head.Value},
	} {
		if *f.out, err = bigint(f.name, f.in); err != nil {
			return EpochRewards{}, err
		}
	}
	return head, nil
}

// PoolRewardsToRows converts per-pool rewards to (epoch, pool_id, taxed, distributed) rows, sorted by pool
func PoolRewardsToRows(info jormrest.EpochRewardsInfo) ([][]any, error) {
	rows := make([][]any, 0, len(info.StakePools))
	for _, id := range sortedKeys(info.StakePools) {
		r := info.StakePools[id]
		taxed, err := bigint(id, r.Taxed)
		if err != nil {
			return nil, err
		}
		distributed, err := bigint(id, r.Distributed)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{int64(info.Epoch), id, taxed, distributed})
	}
	return rows, nil
}

// AccountRewardsToRows converts per-account rewards to (epoch, account, amount) rows, sorted by account
func AccountRewardsToRows(info jormrest.EpochRewardsInfo) ([][]any, error) {
	rows := make([][]any, 0, len(info.Accounts))
	for _, id := range sortedKeys(info.Accounts) {
		amount, err := bigint(id, info.Accounts[id])
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{int64(info.Epoch), id, amount})
	}
	return rows, nil
}

// ToRewards rebuilds reward info from its rows
func ToRewards(head EpochRewards, pools []PoolRewards, accounts []AccountRewards) (jormrest.EpochRewardsInfo, error) {
	extra, err := decodeExtra(head.Extra)
	if err != nil {
		return jormrest.EpochRewardsInfo{}, err
	}

	info := jormrest.EpochRewardsInfo{
		Epoch:    uint32(head.Epoch),
		Drawn:    jormrest.Amount(head.Drawn),
		Fees:     jormrest.Amount(head.Fees),
		Treasury: jormrest.Amount(head.Treasury),
		Value:    jormrest.Amount(head.Value),
		Extra:    extra,
	}
	if len(pools) > 0 {
		info.StakePools = make(map[string]jormrest.PoolRewards, len(pools))
		for _, p := range pools {
			info.StakePools[p.PoolID] = jormrest.PoolRewards{
				Taxed:       jormrest.Amount(p.Taxed),
				Distributed: jormrest.Amount(p.Distributed),
			}
		}
	}
	if len(accounts) > 0 {
		info.Accounts = make(map[string]jormrest.Amount, len(accounts))
		for _, a := range accounts {
			info.Accounts[a.Account] = jormrest.Amount(a.Amount)
		}
	}
	return info, nil
}

func bigint(field string, a jormrest.Amount) (int64, error) {
	if a.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %s: %d", ErrAmountOutOfRange, field, a.Uint64())
	}
	return int64(a), nil
}

func encodeExtra(extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encoding extra fields: %w", err)
	}
	return b, nil
}

func decodeExtra(b []byte) (map[string]json.RawMessage, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var extra map[string]json.RawMessage
	if err := json.Unmarshal(b, &extra); err != nil {
		return nil, fmt.Errorf("decoding extra fields: %w", err)
	}
	return extra, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
