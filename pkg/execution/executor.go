package execution

import (
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// Apply executes every operation and incoming message of block against
// state, in the order the block lists them, and returns the resulting
// state and the outgoing messages produced. It never mutates the state
// passed in — the caller decides whether to commit the result, which is
// what makes speculative execution (local_balance, propose-and-certify's
// first step) safe to run and discard.
//
// pricing is the committee's resource-pricing policy for the chain's
// current epoch, or nil for a chain that is not fee-metered. When set, its
// OperationUnitPrice is charged once per successful Apply call against the
// resulting balance: every execution of the block costs something, whether
// or not it carried any operations, which is why a speculative
// local_balance preview over an otherwise empty block still shows the fee.
// A call that fails returns before the charge.
func Apply(state State, block *types.Block, pricing *committee.ResourcePricing) (State, []types.OutgoingMessage, error) {
	next := state.Clone()
	var outgoing []types.OutgoingMessage

	for _, msg := range block.IncomingMessages {
		out, err := applyIncomingMessage(&next, msg)
		if err != nil {
			return State{}, nil, err
		}
		outgoing = append(outgoing, out...)
	}

	for _, op := range block.Operations {
		out, err := applyOperation(&next, block.ChainID, block.Height, op)
		if err != nil {
			return State{}, nil, err
		}
		outgoing = append(outgoing, out...)
	}

	if pricing != nil {
		next.Balance = next.Balance.SaturatingSub(pricing.OperationUnitPrice)
	}

	return next, outgoing, nil
}

func applyOperation(s *State, chainID types.ChainID, height types.BlockHeight, op types.Operation) ([]types.OutgoingMessage, error) {
	if s.Closed {
		return nil, ErrInactiveChain
	}

	switch op.Kind {
	case types.OpTransfer:
		if err := requireOwner(s, op.Owner); err != nil {
			return nil, err
		}
		newBalance, err := s.Balance.Sub(op.Amount)
		if err != nil {
			return nil, ErrInsufficientFunding
		}
		s.Balance = newBalance
		return []types.OutgoingMessage{{
			Destination:   op.Recipient,
			Kind:          types.MessageCredit,
			Authenticated: op.Owner,
			Amount:        op.Amount,
		}}, nil

	case types.OpClaim:
		if err := requireOwner(s, op.Owner); err != nil {
			return nil, err
		}
		// The claim does not touch this chain's balance: it asks the
		// source chain to debit the owner's balance there and forward the
		// result to Recipient. Whether that succeeds is decided when the
		// source chain applies the resulting MessageClaim.
		return []types.OutgoingMessage{{
			Destination:   op.SourceChain,
			Kind:          types.MessageClaim,
			Authenticated: op.Owner,
			Amount:        op.Amount,
			Recipient:     op.Recipient,
		}}, nil

	case types.OpRotateKeyPair:
		s.Ownership = types.SingleOwner(op.NewPublicKey)
		return nil, nil

	case types.OpTransferOwnership:
		s.Ownership = types.SingleOwner(op.NewPublicKey)
		return nil, nil

	case types.OpShareOwnership:
		owners := append([]string(nil), s.Ownership.Owners...)
		owners = append(owners, op.NewPublicKey)
		weights := map[string]int64{}
		for k, v := range s.Ownership.Weights {
			weights[k] = v
		}
		for _, o := range s.Ownership.Owners {
			if _, ok := weights[o]; !ok {
				weights[o] = 1
			}
		}
		weights[op.NewPublicKey] = op.Weight
		s.Ownership = types.Ownership{Owners: owners, Weights: weights}
		return nil, nil

	case types.OpOpenChain:
		msgID := types.MessageID{ChainID: chainID, Height: height, Index: s.NextChildIndex}
		s.NextChildIndex++
		child := types.ChainIDFromMessage(msgID)
		return []types.OutgoingMessage{{
			Destination:  child,
			Kind:         types.MessageOpenChain,
			Epoch:        s.Epoch,
			NewOwnership: op.NewOwnership,
		}}, nil

	case types.OpCloseChain:
		s.Closed = true
		return nil, nil

	case types.OpSubscribeToNewCommittees:
		return []types.OutgoingMessage{{Destination: op.AdminChain, Kind: types.MessageSubscribe}}, nil

	case types.OpUnsubscribeFromNewCommittees:
		return []types.OutgoingMessage{{Destination: op.AdminChain, Kind: types.MessageUnsubscribe}}, nil

	case types.OpStageNewCommittee:
		s.PendingEpoch = op.NewEpoch
		s.HasPendingEpoch = true
		return nil, nil

	case types.OpFinalizeCommittee:
		if !s.HasPendingEpoch {
			return nil, ErrNoPendingCommittee
		}
		s.Epoch = s.PendingEpoch
		s.HasPendingEpoch = false
		out := make([]types.OutgoingMessage, 0, len(s.Subscribers))
		for _, sub := range s.Subscribers {
			out = append(out, types.OutgoingMessage{Destination: sub, Kind: types.MessageNewCommittee, Epoch: s.Epoch})
		}
		return out, nil

	default:
		return nil, ErrUnknownOperation
	}
}

func applyIncomingMessage(s *State, msg types.IncomingMessage) ([]types.OutgoingMessage, error) {
	switch msg.Kind {
	case types.MessageCredit:
		newBalance, err := s.Balance.Add(msg.Amount)
		if err != nil {
			return nil, err
		}
		s.Balance = newBalance
		return nil, nil

	case types.MessageClaim:
		newBalance, err := s.Balance.Sub(msg.Amount)
		if err != nil {
			// Insufficient balance: the claim is dropped, not bounced.
			return nil, nil
		}
		s.Balance = newBalance
		return []types.OutgoingMessage{{
			Destination:   msg.Recipient,
			Kind:          types.MessageCredit,
			Authenticated: msg.Authenticated,
			Amount:        msg.Amount,
		}}, nil

	case types.MessageNewCommittee:
		s.Epoch = msg.Epoch
		return nil, nil

	case types.MessageOpenChain:
		s.Ownership = msg.NewOwnership
		s.Epoch = msg.Epoch
		return nil, nil

	case types.MessageSubscribe:
		s.Subscribers = appendChainIDIfMissing(s.Subscribers, msg.ID.ChainID)
		return nil, nil

	case types.MessageUnsubscribe:
		s.Subscribers = removeChainID(s.Subscribers, msg.ID.ChainID)
		return nil, nil

	default:
		return nil, ErrUnknownOperation
	}
}

func appendChainIDIfMissing(ids []types.ChainID, id types.ChainID) []types.ChainID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeChainID(ids []types.ChainID, id types.ChainID) []types.ChainID {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func requireOwner(s *State, owner string) error {
	for _, o := range s.Ownership.Owners {
		if o == owner {
			return nil
		}
	}
	return ErrCannotFindKeyForSingleOwnerChain
}
