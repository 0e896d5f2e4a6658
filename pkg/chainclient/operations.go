package chainclient

import (
	"context"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/types"
	"github.com/linera-io/linera-chainclient/pkg/updater"
)

func (c *ChainClient) blockEpoch() (types.Epoch, error) {
	cm, err := c.currentCommittee()
	if err != nil {
		return 0, err
	}
	return cm.Epoch, nil
}

// TransferToAccount stages a transfer and waits for a ConfirmedBlock
// certificate before returning.
func (c *ChainClient) TransferToAccount(ctx context.Context, recipient types.ChainID, amount types.Amount, userData []byte) (*certificate.Certificate, error) {
	owner, err := c.ownerIdentity()
	if err != nil {
		return nil, err
	}
	return c.stageAndConfirm(ctx, types.NewTransfer(owner, recipient, amount, userData))
}

// TransferToAccountUnsafeUnconfirmed stages a transfer but returns as soon
// as a ValidatedBlock certificate exists, without waiting for confirmation.
// The caller accepts that the recipient may need ReceiveCertificate later.
func (c *ChainClient) TransferToAccountUnsafeUnconfirmed(ctx context.Context, recipient types.ChainID, amount types.Amount, userData []byte) (*certificate.Certificate, error) {
	owner, err := c.ownerIdentity()
	if err != nil {
		return nil, err
	}
	return c.stageAndValidate(ctx, types.NewTransfer(owner, recipient, amount, userData))
}

// Claim emits a Claim operation against owner's sub-account on sourceChain.
// If amount exceeds the claimable balance when sourceChain applies it, the
// message is silently dropped there; the local proposal still succeeds.
func (c *ChainClient) Claim(ctx context.Context, sourceChain, recipient types.ChainID, amount types.Amount, userData []byte) (*certificate.Certificate, error) {
	owner, err := c.ownerIdentity()
	if err != nil {
		return nil, err
	}
	return c.stageAndConfirm(ctx, types.NewClaim(owner, sourceChain, recipient, amount, userData))
}

// RotateKeyPair atomically replaces the single owner with newKey's public
// key. Subsequent operations are signed with newKey.
func (c *ChainClient) RotateKeyPair(ctx context.Context, newKey *bls.PrivateKey) (*certificate.Certificate, error) {
	cert, err := c.stageAndConfirm(ctx, types.NewRotateKeyPair(newKey.PublicKey().Hex()))
	if err != nil {
		return nil, err
	}
	c.keyPair = newKey
	return cert, nil
}

// TransferOwnership is like RotateKeyPair, but the local client loses its
// signing capability once the certificate is confirmed.
func (c *ChainClient) TransferOwnership(ctx context.Context, newPublicKey string) (*certificate.Certificate, error) {
	cert, err := c.stageAndConfirm(ctx, types.NewTransferOwnership(newPublicKey))
	if err != nil {
		return nil, err
	}
	c.keyPair = nil
	return cert, nil
}

// ShareOwnership transitions the chain to a multi-owner manager with both
// keys at the given weights.
func (c *ChainClient) ShareOwnership(ctx context.Context, newPublicKey string, weight int64) (*certificate.Certificate, error) {
	return c.stageAndConfirm(ctx, types.NewShareOwnership(newPublicKey, weight))
}

// OpenChain produces an OpenChain operation; the new child chain's id is
// derived from the returned MessageId. The certificate must still be
// delivered to the child (via ReceiveCertificate there) before it is usable.
func (c *ChainClient) OpenChain(ctx context.Context, ownership types.Ownership) (types.MessageID, *certificate.Certificate, error) {
	state, err := c.node.QueryApplication(c.chainID)
	if err != nil {
		return types.MessageID{}, nil, err
	}
	msgID := types.MessageID{ChainID: c.chainID, Height: c.nextBlockHeight, Index: state.NextChildIndex}

	cert, err := c.stageAndConfirm(ctx, types.NewOpenChain(ownership))
	if err != nil {
		return types.MessageID{}, nil, err
	}
	return msgID, cert, nil
}

// CloseChain is terminal: any subsequent mutating call fails with
// ErrInactiveChain.
func (c *ChainClient) CloseChain(ctx context.Context) (*certificate.Certificate, error) {
	cert, err := c.stageAndConfirm(ctx, types.NewCloseChain())
	if err != nil {
		return nil, err
	}
	c.closed = true
	return cert, nil
}

// ReceiveCertificate ingests a certificate produced by another chain,
// validating it against the committee recorded at its epoch and enqueueing
// any messages destined for this chain into the inbox.
func (c *ChainClient) ReceiveCertificate(cert *certificate.Certificate) error {
	cm, err := c.currentCommittee()
	if err != nil {
		return err
	}
	if cert.Epoch != cm.Epoch {
		return ErrCommitteeSynchronizationError
	}
	if err := cert.Verify(cm); err != nil {
		return err
	}
	if cert.ExecutedBlock == nil {
		return nil
	}
	for index, msg := range cert.ExecutedBlock.OutgoingMessages {
		if msg.Destination != c.chainID {
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
		if err := c.node.EnqueueIncoming(c.chainID, incoming); err != nil {
			return err
		}
	}
	c.recordInboxDepth()
	return nil
}

// ProcessInbox drains every pending inbox message into one block and
// proposes it, returning any certificate produced. It returns (nil, nil) if
// the inbox was empty.
func (c *ChainClient) ProcessInbox(ctx context.Context) (*certificate.Certificate, error) {
	if err := c.requireActive(); err != nil {
		return nil, err
	}
	incoming, err := c.node.DrainInbox(c.chainID)
	if err != nil {
		return nil, err
	}
	c.recordInboxDepth()
	if len(incoming) == 0 {
		return nil, nil
	}
	epoch, err := c.blockEpoch()
	if err != nil {
		return nil, err
	}
	block := types.Block{
		ChainID:             c.chainID,
		Height:              c.nextBlockHeight,
		Epoch:               epoch,
		PreviousHash:        c.blockHash,
		Timestamp:           c.clock.Now(),
		AuthenticatedSigner: c.ownerIdentityOrEmpty(),
		IncomingMessages:    incoming,
	}
	return c.proposeAndCertify(ctx, block, c.round)
}

// RequestLeaderTimeout collects a leader-timeout quorum and advances to the
// next round, if this round's deadline has passed; otherwise fails with
// ErrMissingVoteInValidatorResponse.
func (c *ChainClient) RequestLeaderTimeout(ctx context.Context) (*certificate.Certificate, error) {
	if c.clock.Now().Before(c.roundDeadline) {
		return nil, ErrMissingVoteInValidatorResponse
	}
	cm, err := c.currentCommittee()
	if err != nil {
		return nil, err
	}

	timeoutCert, err := c.collectQuorum(ctx, cm, c.round, updater.RequestLeaderTimeout, func(v committee.Validator) updater.Request {
		return updater.Request{ChainID: c.chainID, UpToHeight: c.nextBlockHeight, Epoch: cm.Epoch, Round: c.round}
	}, certificate.KindLeaderTimeout, nil)
	if err != nil {
		return nil, c.handleProposeError(err, c.round)
	}

	if err := c.node.HandleCertificate(c.chainID, timeoutCert); err != nil {
		return nil, err
	}
	c.round = c.round.Next()
	c.pendingBlock = nil
	c.pendingValid = nil
	c.recordRoundTimeout()
	return timeoutCert, nil
}

// ClearPendingBlock discards the staged proposal, if any, without advancing
// next_block_height.
func (c *ChainClient) ClearPendingBlock() {
	c.pendingBlock = nil
	c.pendingValid = nil
}

// RetryPendingBlock resubmits the currently staged block at the client's
// current round, used after a prior attempt failed to gather a quorum.
func (c *ChainClient) RetryPendingBlock(ctx context.Context) (*certificate.Certificate, error) {
	if c.pendingBlock == nil {
		return nil, ErrNoPendingBlock
	}
	block := *c.pendingBlock
	block.Height = c.nextBlockHeight
	block.PreviousHash = c.blockHash
	block.Timestamp = c.clock.Now()
	return c.proposeAndCertify(ctx, block, c.round)
}

func (c *ChainClient) ownerIdentity() (string, error) {
	if err := c.requireOwner(); err != nil {
		return "", err
	}
	return c.keyPair.PublicKey().Hex(), nil
}

func (c *ChainClient) ownerIdentityOrEmpty() string {
	if c.keyPair == nil {
		return ""
	}
	return c.keyPair.PublicKey().Hex()
}

func (c *ChainClient) stageAndConfirm(ctx context.Context, op types.Operation) (*certificate.Certificate, error) {
	block, err := c.stageBlock(op)
	if err != nil {
		return nil, err
	}
	return c.proposeAndCertify(ctx, block, c.round)
}

// stageAndValidate stages op and returns as soon as a ValidatedBlock
// certificate is formed, skipping the FinalizeBlock round.
func (c *ChainClient) stageAndValidate(ctx context.Context, op types.Operation) (*certificate.Certificate, error) {
	block, err := c.stageBlock(op)
	if err != nil {
		return nil, err
	}
	return c.proposeAndValidate(ctx, block, c.round)
}

func (c *ChainClient) stageBlock(op types.Operation) (types.Block, error) {
	if err := c.requireActive(); err != nil {
		return types.Block{}, err
	}
	if err := c.requireOwner(); err != nil {
		return types.Block{}, err
	}
	epoch, err := c.blockEpoch()
	if err != nil {
		return types.Block{}, err
	}
	return types.Block{
		ChainID:             c.chainID,
		Height:              c.nextBlockHeight,
		Epoch:               epoch,
		PreviousHash:        c.blockHash,
		Timestamp:           c.clock.Now(),
		AuthenticatedSigner: c.ownerIdentityOrEmpty(),
		Operations:          []types.Operation{op},
	}, nil
}
