package jormrest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors for value decoding
var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidPair   = errors.New("invalid pair")
)

// Amount is a lovelace-style token amount. The node encodes it either as a JSON
// number or as a decimal string.
type Amount uint64

// UnmarshalJSON accepts both 42 and "42"
func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := data
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	*a = Amount(v)
	return nil
}

// Uint64 returns the amount as a plain integer
func (a Amount) Uint64() uint64 { return uint64(a) }

// PoolRewards is the [taxed, distributed] pair the node reports per stake pool
type PoolRewards struct {
	Taxed       Amount
	Distributed Amount
}

func (p *PoolRewards) UnmarshalJSON(data []byte) error {
	var pair []Amount
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: expected 2 elements, got %d", ErrInvalidPair, len(pair))
	}
	p.Taxed, p.Distributed = pair[0], pair[1]
	return nil
}

func (p PoolRewards) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{p.Taxed.Uint64(), p.Distributed.Uint64()})
}

// EpochRewardsInfo describes the reward distribution computed for one epoch
type EpochRewardsInfo struct {
	Epoch      uint32                 `json:"epoch"`
	Drawn      Amount                 `json:"drawn"`
	Fees       Amount                 `json:"fees"`
	Treasury   Amount                 `json:"treasury"`
	Value      Amount                 `json:"value"`
	StakePools map[string]PoolRewards `json:"stake_pools"`
	Accounts   map[string]Amount      `json:"accounts"`

	// Extra keeps fields this package does not model, untouched
	Extra map[string]json.RawMessage `json:"-"`
}

func (e *EpochRewardsInfo) UnmarshalJSON(data []byte) error {
	type plain EpochRewardsInfo
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, "epoch", "drawn", "fees", "treasury", "value", "stake_pools", "accounts")
	if err != nil {
		return err
	}
	v.Extra = extra
	*e = EpochRewardsInfo(v)
	return nil
}

// MarshalJSON writes Extra back next to the modeled fields
func (e EpochRewardsInfo) MarshalJSON() ([]byte, error) {
	type plain EpochRewardsInfo
	return withExtra(plain(e), e.Extra)
}

// PoolStake is one [pool_id, amount] entry of a stake distribution
type PoolStake struct {
	PoolID string
	Amount Amount
}

func (p *PoolStake) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: expected 2 elements, got %d", ErrInvalidPair, len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.PoolID); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &p.Amount)
}

func (p PoolStake) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.PoolID, p.Amount.Uint64()})
}

// StakeDistribution is the allocation of stake at a given epoch
type StakeDistribution struct {
	Dangling   Amount      `json:"dangling"`
	Unassigned Amount      `json:"unassigned"`
	Pools      []PoolStake `json:"pools"`
}

// Total sums the stake across unassigned, dangling and every pool
func (s StakeDistribution) Total() uint64 {
	total := s.Dangling.Uint64() + s.Unassigned.Uint64()
	for _, p := range s.Pools {
		total += p.Amount.Uint64()
	}
	return total
}

// StakeDistributionInfo is the /v0/stake response
type StakeDistributionInfo struct {
	Epoch uint32            `json:"epoch"`
	Stake StakeDistribution `json:"stake"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (s *StakeDistributionInfo) UnmarshalJSON(data []byte) error {
	type plain StakeDistributionInfo
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, "epoch", "stake")
	if err != nil {
		return err
	}
	v.Extra = extra
	*s = StakeDistributionInfo(v)
	return nil
}

func (s StakeDistributionInfo) MarshalJSON() ([]byte, error) {
	type plain StakeDistributionInfo
	return withExtra(plain(s), s.Extra)
}

// withExtra encodes v and adds the extra members. Modeled fields win on a name clash.
func withExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, known := all[k]; !known {
			all[k] = raw
		}
	}
	return json.Marshal(all)
}

// unknownFields returns the object members of data not listed in known, or nil if there are none
func unknownFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}
