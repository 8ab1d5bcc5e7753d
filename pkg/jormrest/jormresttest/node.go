// Package jormresttest provides a fake node serving the v0 monitoring endpoints
package jormresttest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/screwyprof/jormprobe/pkg/httpkit"
	"github.com/screwyprof/jormprobe/pkg/jormrest"
)

var (
	ErrInvalidEpoch  = errors.New("invalid epoch")
	ErrInvalidLength = errors.New("invalid length")
	ErrEpochNotFound = errors.New("epoch not found")
)

// nodeError mirrors the 4xx JSON errors the node returns
type nodeError struct {
	err  error
	code int
}

func (e nodeError) Error() string { return e.err.Error() }
func (e nodeError) HTTPCode() int { return e.code }
func (e nodeError) Cause() error  { return e.err }

// Node is an in-memory node. Configure the fields before the first request.
type Node struct {
	// Rewards keyed by epoch, served by /v0/rewards/epoch/{epoch} and /v0/rewards/history/{length}
	Rewards map[uint32]jormrest.EpochRewardsInfo
	// Stake is the current distribution
	Stake jormrest.StakeDistributionInfo
	// StakeByEpoch backs /v0/stake/{epoch}
	StakeByEpoch map[uint32]jormrest.StakeDistributionInfo
	// Raw overrides any route: path (e.g. "/v0/stake") to verbatim body served with 200
	Raw map[string]string

	mu       sync.Mutex
	requests []string
}

// NewServer starts an httptest server for node and closes it when the test ends
func NewServer(t *testing.T, node *Node) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(node.Handler())
	t.Cleanup(server.Close)
	return server
}

// Handler returns the node routes
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /v0/rewards/epoch/{epoch}", httpkit.HandlerFunc(n.rewardsEpoch))
	mux.Handle("GET /v0/rewards/history/{length}", httpkit.HandlerFunc(n.rewardsHistory))
	mux.Handle("GET /v0/stake", httpkit.HandlerFunc(n.stake))
	mux.Handle("GET /v0/stake/{epoch}", httpkit.HandlerFunc(n.stakeAt))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.requests = append(n.requests, r.URL.Path)
		n.mu.Unlock()

		if body, ok := n.Raw[r.URL.Path]; ok {
			httpkit.Text(http.StatusOK, body)(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// Requests returns the paths requested so far, in order
func (n *Node) Requests() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.requests...)
}

func (n *Node) rewardsEpoch(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	epoch, err := parseUint32(r.PathValue("epoch"))
	if err != nil {
		return httpkit.JsonError(nodeError{fmt.Errorf("%w: %w", ErrInvalidEpoch, err), http.StatusBadRequest})
	}
	info, ok := n.Rewards[epoch]
	if !ok {
		return httpkit.JsonError(nodeError{fmt.Errorf("%w: %d", ErrEpochNotFound, epoch), http.StatusNotFound})
	}
	return httpkit.JSON(info)
}

// rewardsHistory serves the newest length epochs, newest first
func (n *Node) rewardsHistory(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	length, err := parseUint32(r.PathValue("length"))
	if err != nil {
		return httpkit.JsonError(nodeError{fmt.Errorf("%w: %w", ErrInvalidLength, err), http.StatusBadRequest})
	}

	var latest uint32
	for epoch := range n.Rewards {
		latest = max(latest, epoch)
	}

	history := make([]jormrest.EpochRewardsInfo, 0, min(int(length), len(n.Rewards)))
	for epoch := int64(latest); epoch >= 0 && len(history) < int(length); epoch-- {
		if info, ok := n.Rewards[uint32(epoch)]; ok {
			history = append(history, info)
		}
	}
	return httpkit.JSON(history)
}

func (n *Node) stake(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	return httpkit.JSON(n.Stake)
}

func (n *Node) stakeAt(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	epoch, err := parseUint32(r.PathValue("epoch"))
	if err != nil {
		return httpkit.JsonError(nodeError{fmt.Errorf("%w: %w", ErrInvalidEpoch, err), http.StatusBadRequest})
	}
	info, ok := n.StakeByEpoch[epoch]
	if !ok {
		return httpkit.JsonError(nodeError{fmt.Errorf("%w: %d", ErrEpochNotFound, epoch), http.StatusNotFound})
	}
	return httpkit.JSON(info)
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
