package chainclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/execution"
	"github.com/linera-io/linera-chainclient/pkg/types"
	"github.com/linera-io/linera-chainclient/pkg/updater"
)

// proposeAndValidate runs the first half of the six-step algorithm: execute
// the staged block locally, broadcast it for votes, and aggregate a
// ValidatedBlock quorum certificate.
func (c *ChainClient) proposeAndValidate(ctx context.Context, block types.Block, round types.RoundNumber) (*certificate.Certificate, error) {
	executed, err := c.node.ExecuteSpeculatively(c.chainID, block)
	if err != nil {
		if errors.Is(err, execution.ErrInsufficientFunding) {
			return nil, ErrInsufficientFunding
		}
		return nil, err
	}

	if err := c.requireOwner(); err != nil {
		return nil, err
	}
	valueHash, err := executed.Hash()
	if err != nil {
		return nil, err
	}
	signature := c.keyPair.Sign(valueHash.Bytes())
	proposal := &certificate.BlockProposal{
		Round:     round,
		Block:     *executed,
		Signer:    c.keyPair.PublicKey().Hex(),
		Signature: signature.Bytes(),
	}
	c.pendingBlock = &block
	c.roundDeadline = c.clock.Now().Add(c.roundTimeout)

	cm, err := c.currentCommittee()
	if err != nil {
		return nil, err
	}

	if err := c.node.HandleBlockProposal(c.chainID, proposal); err != nil {
		return nil, err
	}

	validatedCert, err := c.collectQuorum(ctx, cm, round, updater.SubmitBlockProposal, func(v committee.Validator) updater.Request {
		return updater.Request{ChainID: c.chainID, UpToHeight: block.Height, Epoch: block.Epoch, Round: round, Proposal: proposal}
	}, certificate.KindValidatedBlock, executed)
	if err != nil {
		return nil, c.handleProposeError(err, round)
	}

	if err := c.node.HandleCertificate(c.chainID, validatedCert); err != nil {
		return nil, err
	}
	c.pendingValid = validatedCert
	return validatedCert, nil
}

// confirmValidated runs the second half: re-broadcast the validated
// certificate for confirmation, aggregate a ConfirmedBlock certificate, and
// hand it to the local node.
func (c *ChainClient) confirmValidated(ctx context.Context, round types.RoundNumber, validatedCert *certificate.Certificate) (*certificate.Certificate, error) {
	cm, err := c.currentCommittee()
	if err != nil {
		return nil, err
	}

	confirmedCert, err := c.collectQuorum(ctx, cm, round, updater.FinalizeBlock, func(v committee.Validator) updater.Request {
		return updater.Request{ChainID: c.chainID, Certificate: validatedCert}
	}, certificate.KindConfirmedBlock, validatedCert.ExecutedBlock)
	if err != nil {
		return nil, c.handleProposeError(err, round)
	}

	if err := c.node.HandleCertificate(c.chainID, confirmedCert); err != nil {
		return nil, err
	}

	c.blockHash, err = confirmedCert.ExecutedBlock.Hash()
	if err != nil {
		return nil, err
	}
	c.nextBlockHeight = confirmedCert.Height.Next()
	c.pendingBlock = nil
	c.pendingValid = nil
	c.recordBlockConfirmed()

	c.deliverOutgoingMessages(confirmedCert)

	return confirmedCert, nil
}

// deliverOutgoingMessages eagerly pushes a confirmed block's outgoing
// messages into their destination chains' inboxes. A destination this node
// does not host locally is skipped; the recipient picks the message up on
// its own synchronize_from_validators, or the sender can push again via
// receive_certificate, which forwards.
func (c *ChainClient) deliverOutgoingMessages(cert *certificate.Certificate) {
	for index, msg := range cert.ExecutedBlock.OutgoingMessages {
		if msg.Destination == c.chainID {
			continue
		}
		incoming := types.IncomingMessage{
			ID:            types.MessageID{ChainID: cert.ChainID, Height: cert.Height, Index: uint32(index)},
			Kind:          msg.Kind,
			Authenticated: msg.Authenticated,
			Amount:        msg.Amount,
			Epoch:         msg.Epoch,
			NewOwnership:  msg.NewOwnership,
			Recipient:     msg.Recipient,
		}
		if err := c.node.EnqueueIncoming(msg.Destination, incoming); err != nil {
			c.logger.Printf("[chainclient] chain %s: deferred delivery to %s: %v", c.chainID, msg.Destination, err)
		}
	}
}

// proposeAndCertify runs both halves of the algorithm, producing a
// ConfirmedBlock certificate in one call.
func (c *ChainClient) proposeAndCertify(ctx context.Context, block types.Block, round types.RoundNumber) (*certificate.Certificate, error) {
	validatedCert, err := c.proposeAndValidate(ctx, block, round)
	if err != nil {
		return nil, err
	}
	return c.confirmValidated(ctx, round, validatedCert)
}

// collectQuorum drives the communicator for one round and aggregates the
// resulting votes into a certificate of the given kind.
func (c *ChainClient) collectQuorum(
	ctx context.Context,
	cm *committee.Committee,
	round types.RoundNumber,
	action updater.Action,
	makeRequest func(committee.Validator) updater.Request,
	kind certificate.Kind,
	executed *types.ExecutedBlock,
) (*certificate.Certificate, error) {
	votes, err := c.communicator.CommunicateWithQuorum(ctx, cm, c.updaters, action, makeRequest)
	if err != nil {
		return nil, err
	}
	typedVotes := make([]certificate.Vote, 0, len(votes))
	for i := range votes {
		v := votes[i]
		v.Kind = kind
		typedVotes = append(typedVotes, v)
	}
	cert, err := certificate.Aggregate(cm, typedVotes, executed)
	if err != nil {
		return nil, err
	}
	c.recordQuorumRound(kind)
	return cert, nil
}

// handleProposeError classifies a failure from quorum collection into the
// recovery path the caller should take: round recovery on a split vote,
// epoch recovery on a stale/unknown committee.
func (c *ChainClient) handleProposeError(err error, round types.RoundNumber) error {
	switch {
	case errors.Is(err, certificate.ErrSplitVote):
		if round.Kind == types.RoundKindMultiLeader {
			c.round = round.Next()
			c.logger.Printf("[chainclient] chain %s: split vote in round %s, advanced to round %s", c.chainID, round, c.round)
		} else {
			c.logger.Printf("[chainclient] chain %s: split vote in single-leader round %s, awaiting timeout", c.chainID, round)
		}
		return fmt.Errorf("%w: %v", ErrMissingVoteInValidatorResponse, err)
	case errors.Is(err, certificate.ErrWrongEpoch):
		return ErrCommitteeDeprecationError
	default:
		return err
	}
}
