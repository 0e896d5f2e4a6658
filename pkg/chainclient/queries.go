package chainclient

import (
	"context"

	"github.com/linera-io/linera-chainclient/pkg/execution"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// SystemApplicationID names the one application this reference executor
// understands; QueryApplication rejects every other id, since the
// WebAssembly application runtime is out of scope.
const SystemApplicationID = "system"

// SynchronizeFromValidators refreshes this client's cached height, hash and
// round from the local node, which is always the most current view a quorum
// has certified in this single-process reference implementation, and
// returns the resulting balance.
func (c *ChainClient) SynchronizeFromValidators(ctx context.Context) (types.Amount, error) {
	info, err := c.node.HandleChainInfoQuery(c.chainID)
	if err != nil {
		return types.Amount{}, err
	}
	c.blockHash = info.LastHash
	c.nextBlockHeight = info.Height
	c.round = info.Round
	c.closed = info.Closed
	return info.Balance, nil
}

// LocalBalance speculatively executes a no-op block consuming every queued
// incoming message and returns the balance that would result, without
// mutating any state. It fails with ErrWalletSynchronizationError if this
// client's cached height has fallen behind the node's committed height.
func (c *ChainClient) LocalBalance() (types.Amount, error) {
	info, err := c.node.HandleChainInfoQuery(c.chainID)
	if err != nil {
		return types.Amount{}, err
	}
	if info.Height != c.nextBlockHeight {
		return types.Amount{}, ErrWalletSynchronizationError
	}
	incoming, err := c.node.PeekInbox(c.chainID)
	if err != nil {
		return types.Amount{}, err
	}
	state, err := c.node.QueryApplication(c.chainID)
	if err != nil {
		return types.Amount{}, err
	}
	cm, err := c.currentCommittee()
	if err != nil {
		return types.Amount{}, err
	}
	block := types.Block{
		ChainID:          c.chainID,
		Height:           c.nextBlockHeight,
		PreviousHash:     c.blockHash,
		IncomingMessages: incoming,
	}
	next, _, err := execution.Apply(state, &block, cm.ResourcePricing)
	if err != nil {
		return types.Amount{}, err
	}
	return next.Balance, nil
}

// QuerySystemApplication returns a read-only snapshot of this chain's
// system-level execution state: ownership, epoch, balance and lifecycle.
func (c *ChainClient) QuerySystemApplication() (execution.State, error) {
	return c.node.QueryApplication(c.chainID)
}

// QueryApplication is the general form of QuerySystemApplication, scoped to
// one application id. Only SystemApplicationID is recognized; every other
// id fails, since user application execution is out of scope.
func (c *ChainClient) QueryApplication(appID string) (execution.State, error) {
	if appID != SystemApplicationID {
		return execution.State{}, ErrUnknownApplication
	}
	return c.QuerySystemApplication()
}
