package chainclient

import (
	"context"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// StageNewCommittee introduces newCommittee at the next epoch without yet
// retiring the current one. Admin-chain-only.
func (c *ChainClient) StageNewCommittee(ctx context.Context, newCommittee *committee.Committee) (*certificate.Certificate, error) {
	if err := c.requireAdmin(); err != nil {
		return nil, err
	}
	cm, err := c.currentCommittee()
	if err != nil {
		return nil, err
	}
	cert, err := c.stageAndConfirm(ctx, types.NewStageNewCommittee(cm.Epoch+1))
	if err != nil {
		return nil, err
	}
	c.pendingCommittee = newCommittee
	return cert, nil
}

// FinalizeCommittee promotes the staged committee to current, deprecating
// the previous epoch, and delivers it to every subscribed chain this node
// tracks locally. Admin-chain-only.
func (c *ChainClient) FinalizeCommittee(ctx context.Context) (*certificate.Certificate, error) {
	if err := c.requireAdmin(); err != nil {
		return nil, err
	}
	if c.pendingCommittee == nil {
		return nil, ErrNoPendingCommittee
	}
	cert, err := c.stageAndConfirm(ctx, types.NewFinalizeCommittee())
	if err != nil {
		return nil, err
	}
	if err := c.node.SetCommittee(c.chainID, c.pendingCommittee); err != nil {
		return nil, err
	}
	state, err := c.node.QueryApplication(c.chainID)
	if err != nil {
		return nil, err
	}
	for _, subscriber := range state.Subscribers {
		// Best-effort: a subscriber the local node has never initialized
		// (e.g. it lives behind validators this process does not host) picks
		// up the new committee on its own next synchronize_from_validators.
		_ = c.node.SetCommittee(subscriber, c.pendingCommittee)
	}
	c.pendingCommittee = nil
	return cert, nil
}

// SubscribeToNewCommittees registers this chain with the admin chain's
// committee-migration channel.
func (c *ChainClient) SubscribeToNewCommittees(ctx context.Context) (*certificate.Certificate, error) {
	if c.adminID == nil {
		return nil, ErrCommitteeSynchronizationError
	}
	return c.stageAndConfirm(ctx, types.NewSubscribeToNewCommittees(*c.adminID))
}

// UnsubscribeFromNewCommittees reverses SubscribeToNewCommittees.
func (c *ChainClient) UnsubscribeFromNewCommittees(ctx context.Context) (*certificate.Certificate, error) {
	if c.adminID == nil {
		return nil, ErrCommitteeSynchronizationError
	}
	return c.stageAndConfirm(ctx, types.NewUnsubscribeFromNewCommittees(*c.adminID))
}
