package jormrest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/jormprobe/pkg/jormrest"
	"github.com/screwyprof/jormprobe/pkg/jormrest/jormresttest"
)

func TestClientBuildsRequestURLs(t *testing.T) {
	t.Parallel()

	t.Run("it requests the epoch rewards path", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Rewards: map[uint32]jormrest.EpochRewardsInfo{7: {Epoch: 7}}}
		client := clientFor(t, node)

		// Act
		_, err := client.EpochRewardHistory(t.Context(), 7)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"/v0/rewards/epoch/7"}, node.Requests())
	})

	t.Run("it requests the reward history path", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{}
		client := clientFor(t, node)

		// Act
		_, err := client.RewardHistory(t.Context(), 12)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []string{"/v0/rewards/history/12"}, node.Requests())
	})

	t.Run("it requests the stake paths", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{StakeByEpoch: map[uint32]jormrest.StakeDistributionInfo{3: {Epoch: 3}}}
		client := clientFor(t, node)

		// Act
		_, errNow := client.StakeDistribution(t.Context())
		_, errAt := client.StakeDistributionAt(t.Context(), 3)

		// Assert
		require.NoError(t, errNow)
		require.NoError(t, errAt)
		assert.Equal(t, []string{"/v0/stake", "/v0/stake/3"}, node.Requests())
	})

	t.Run("it joins base address and path with exactly one slash", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := jormrest.New(jormrest.ClientConfig{BaseAddress: "http://node:8443/api/"}, jormrest.WithSink(jormrest.NopSink{}))

		// Act & Assert
		assert.Equal(t, "http://node:8443/api/v0/stake", client.URL("stake"))
		assert.Equal(t, "http://node:8443/api/v0/rewards/epoch/1", client.URL("/rewards/epoch/1"))
	})

	t.Run("it defaults bare host:port addresses to http", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := jormrest.New(jormrest.ClientConfig{BaseAddress: "127.0.0.1:8443"}, jormrest.WithSink(jormrest.NopSink{}))

		// Act & Assert
		assert.Equal(t, "http://127.0.0.1:8443", client.BaseURL())
	})
}

func TestClientParsesResponses(t *testing.T) {
	t.Parallel()

	t.Run("it decodes epoch rewards with string amounts", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Raw: map[string]string{
			"/v0/rewards/epoch/5": `{"epoch":5,"value":"0","treasury":"0"}`,
		}}
		client := clientFor(t, node)

		// Act
		info, err := client.EpochRewardHistory(t.Context(), 5)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint32(5), info.Epoch)
		assert.Equal(t, jormrest.Amount(0), info.Treasury)
	})

	t.Run("it returns no more history entries than requested", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Rewards: map[uint32]jormrest.EpochRewardsInfo{
			1: {Epoch: 1, Drawn: 10},
			2: {Epoch: 2, Drawn: 20},
			3: {Epoch: 3, Drawn: 30},
		}}
		client := clientFor(t, node)

		// Act
		history, err := client.RewardHistory(t.Context(), 2)

		// Assert
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, uint32(3), history[0].Epoch)
		assert.Equal(t, jormrest.Amount(30), history[0].Drawn)
		assert.Equal(t, uint32(2), history[1].Epoch)
	})

	t.Run("it decodes stake distribution pools", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Raw: map[string]string{
			"/v0/stake": `{"epoch":9,"stake":{"dangling":1,"unassigned":"2","pools":[["pool-a",100],["pool-b","200"]]}}`,
		}}
		client := clientFor(t, node)

		// Act
		info, err := client.StakeDistribution(t.Context())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint32(9), info.Epoch)
		assert.Equal(t, []jormrest.PoolStake{
			{PoolID: "pool-a", Amount: 100},
			{PoolID: "pool-b", Amount: 200},
		}, info.Stake.Pools)
		assert.Equal(t, uint64(303), info.Stake.Total())
	})

	t.Run("it keeps unmodeled fields served by the node", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Rewards: map[uint32]jormrest.EpochRewardsInfo{
			8: {Epoch: 8, Extra: map[string]json.RawMessage{"future_field": json.RawMessage(`[1,2]`)}},
		}}
		client := clientFor(t, node)

		// Act
		info, err := client.EpochRewardHistory(t.Context(), 8)

		// Assert
		require.NoError(t, err)
		assert.JSONEq(t, `[1,2]`, string(info.Extra["future_field"]))
	})

	t.Run("it returns the raw body for non-json responses", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Raw: map[string]string{"/v0/stake": "not json"}}
		client := clientFor(t, node)

		// Act
		body, err := client.GetRaw(t.Context(), "stake")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "not json", body)
	})

	t.Run("it returns non-2xx bodies without error by default", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{}
		client := clientFor(t, node)

		// Act
		body, err := client.GetRaw(t.Context(), "stake/42")

		// Assert
		require.NoError(t, err)
		assert.Contains(t, body, "epoch not found")
	})
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	t.Run("it reports deserialization failures for every typed operation", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Raw: map[string]string{
			"/v0/rewards/epoch/1":   "not json",
			"/v0/rewards/history/1": "not json",
			"/v0/stake":             "not json",
			"/v0/stake/1":           "not json",
		}}
		client := clientFor(t, node)
		ctx := t.Context()

		// Act
		_, errEpoch := client.EpochRewardHistory(ctx, 1)
		_, errHistory := client.RewardHistory(ctx, 1)
		_, errStake := client.StakeDistribution(ctx)
		_, errStakeAt := client.StakeDistributionAt(ctx, 1)

		// Assert
		for _, err := range []error{errEpoch, errHistory, errStake, errStakeAt} {
			require.Error(t, err)
			assert.ErrorIs(t, err, jormrest.ErrDeserializationFailed)
			assert.NotErrorIs(t, err, jormrest.ErrRequestFailed)
		}
	})

	t.Run("it reports a null body as a deserialization failure", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Raw: map[string]string{
			"/v0/rewards/epoch/1":   "null",
			"/v0/rewards/history/1": " null\n",
			"/v0/stake":             "null",
			"/v0/stake/1":           "null",
		}}
		client := clientFor(t, node)
		ctx := t.Context()

		// Act
		_, errEpoch := client.EpochRewardHistory(ctx, 1)
		history, errHistory := client.RewardHistory(ctx, 1)
		_, errStake := client.StakeDistribution(ctx)
		_, errStakeAt := client.StakeDistributionAt(ctx, 1)

		// Assert
		assert.Nil(t, history)
		for _, err := range []error{errEpoch, errHistory, errStake, errStakeAt} {
			require.Error(t, err)
			assert.ErrorIs(t, err, jormrest.ErrDeserializationFailed)
			assert.ErrorIs(t, err, jormrest.ErrNullBody)
		}
	})

	t.Run("it still returns a null body from the raw call", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Raw: map[string]string{"/v0/stake": "null"}}
		client := clientFor(t, node)

		// Act
		body, err := client.GetRaw(t.Context(), "stake")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "null", body)
	})

	t.Run("it reports request failures for an unreachable node", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := jormrest.New(jormrest.ClientConfig{BaseAddress: unreachableAddress(t)}, jormrest.WithSink(jormrest.NopSink{}))
		ctx := t.Context()

		// Act
		_, errRaw := client.GetRaw(ctx, "stake")
		_, errEpoch := client.EpochRewardHistory(ctx, 1)
		_, errHistory := client.RewardHistory(ctx, 1)
		_, errStake := client.StakeDistribution(ctx)
		_, errStakeAt := client.StakeDistributionAt(ctx, 1)

		// Assert
		for _, err := range []error{errRaw, errEpoch, errHistory, errStake, errStakeAt} {
			require.Error(t, err)
			assert.ErrorIs(t, err, jormrest.ErrRequestFailed)
			assert.NotErrorIs(t, err, jormrest.ErrDeserializationFailed)
		}
	})

	t.Run("it reports a malformed address as a request failure", func(t *testing.T) {
		t.Parallel()

		// Arrange
		client := jormrest.New(jormrest.ClientConfig{BaseAddress: "http://bad host:80"}, jormrest.WithSink(jormrest.NopSink{}))

		// Act
		_, err := client.StakeDistribution(t.Context())

		// Assert
		var restErr *jormrest.Error
		require.ErrorAs(t, err, &restErr)
		assert.Equal(t, jormrest.KindRequestFailed, restErr.Kind())
		assert.Equal(t, "http://bad host:80/v0/stake", restErr.URL())
	})

	t.Run("it fails non-2xx responses when strict status is on", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{}
		server := jormresttest.NewServer(t, node)
		client := jormrest.New(jormrest.ClientConfig{BaseAddress: server.URL},
			jormrest.WithHTTPClient(server.Client()),
			jormrest.WithSink(jormrest.NopSink{}),
			jormrest.WithStrictStatus(),
		)

		// Act
		_, err := client.StakeDistributionAt(t.Context(), 42)

		// Assert
		require.ErrorIs(t, err, jormrest.ErrRequestFailed)
		var statusErr *jormrest.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	})

	t.Run("it reports cancellation as a request failure", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{}
		client := clientFor(t, node)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		// Act
		_, err := client.StakeDistribution(ctx)

		// Assert
		require.ErrorIs(t, err, jormrest.ErrRequestFailed)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClientRecordsDiagnostics(t *testing.T) {
	t.Parallel()

	t.Run("it records the url and the raw body of each call", func(t *testing.T) {
		t.Parallel()

		// Arrange
		node := &jormresttest.Node{Raw: map[string]string{"/v0/stake": `{"epoch":1}`}}
		server := jormresttest.NewServer(t, node)
		sink := &capturingSink{}
		client := jormrest.New(jormrest.ClientConfig{BaseAddress: server.URL},
			jormrest.WithHTTPClient(server.Client()),
			jormrest.WithSink(sink),
		)

		// Act
		_, err := client.StakeDistribution(t.Context())

		// Assert
		require.NoError(t, err)
		entries := sink.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, jormrest.Entry{Kind: jormrest.EntryRequest, URL: server.URL + "/v0/stake"}, entries[0])
		assert.Equal(t, jormrest.EntryResponse, entries[1].Kind)
		assert.Equal(t, http.StatusOK, entries[1].Status)
		assert.Equal(t, `{"epoch":1}`, entries[1].Body)
	})

	t.Run("it writes the same lines as a console sink", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var out bytes.Buffer
		sink := jormrest.NewWriterSink(&out)

		// Act
		sink.Record(t.Context(), jormrest.Entry{Kind: jormrest.EntryRequest, URL: "http://node/v0/stake"})
		sink.Record(t.Context(), jormrest.Entry{Kind: jormrest.EntryResponse, Body: "{}"})

		// Assert
		assert.Equal(t, "Sending GET request: 'http://node/v0/stake'\nResponse: {}\n", out.String())
	})
}

// clientFor starts a fake node and returns a silent client pointed at it
func clientFor(t *testing.T, node *jormresttest.Node) *jormrest.Client {
	t.Helper()

	server := jormresttest.NewServer(t, node)
	return jormrest.New(jormrest.ClientConfig{BaseAddress: server.URL},
		jormrest.WithHTTPClient(server.Client()),
		jormrest.WithSink(jormrest.NopSink{}),
	)
}

// unreachableAddress returns the address of a listener that has already been closed
func unreachableAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

type capturingSink struct {
	mu      sync.Mutex
	entries []jormrest.Entry
}

func (s *capturingSink) Record(_ context.Context, e jormrest.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *capturingSink) Entries() []jormrest.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jormrest.Entry(nil), s.entries...)
}
