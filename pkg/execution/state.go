// Package execution is a minimal, deterministic reference executor for the
// system operations a ChainClient can submit: enough to drive balance
// transfers, claims, ownership changes, and chain open/close through
// speculative and certified execution, without the general-purpose
// application runtime a full node would also carry.
package execution

import "github.com/linera-io/linera-chainclient/pkg/types"

// State is the execution-relevant slice of a chain's state: what an
// operation can read and mutate. The local node holds one State per chain
// alongside its height and pending block.
type State struct {
	Ownership types.Ownership
	Epoch     types.Epoch
	Balance   types.Amount
	Closed    bool
	// NextChildIndex is the message index to assign to the next OpenChain
	// operation executed on this chain, so repeated OpenChain calls in the
	// same block get distinct, deterministic MessageIDs.
	NextChildIndex uint32

	// Subscribers lists the chains that asked (via MessageSubscribe) to be
	// notified of committee changes. Only meaningful on the admin chain.
	Subscribers []types.ChainID
	// PendingEpoch is the epoch staged by StageNewCommittee, awaiting
	// FinalizeCommittee. Only meaningful on the admin chain.
	PendingEpoch types.Epoch
	// HasPendingEpoch reports whether PendingEpoch holds a staged value, since
	// epoch 0 is itself a valid epoch number.
	HasPendingEpoch bool
}

// Clone returns an independent copy, used for speculative execution that
// must not mutate the chain's confirmed state until a certificate lands.
func (s State) Clone() State {
	clone := s
	clone.Subscribers = append([]types.ChainID(nil), s.Subscribers...)
	return clone
}
