// Package chainclienttest provides a fault-injecting stand-in for a
// validator's Transport, for tests that exercise pkg/chainclient's
// round-recovery and quorum-tolerance paths without a network.
package chainclienttest

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// FaultMode selects how a FakeValidatorNode answers every call, the same
// three-way split original_source/linera-core's test builder uses
// (set_fault_type) to drive round-recovery and Byzantine-tolerance
// scenarios: a validator is either fully correct, unreachable, or lying.
type FaultMode int

const (
	// Honest votes for whatever value it is actually asked to vote on.
	Honest FaultMode = iota
	// Offline returns ErrOffline for every call, simulating a validator the
	// network cannot currently reach.
	Offline
	// Byzantine votes for a value derived from, but different than, the one
	// it was asked to vote on, simulating a validator that misreports what
	// it saw.
	Byzantine
)

// ErrOffline is the retryable error an Offline FakeValidatorNode returns;
// pkg/updater treats it like any other transient transport failure.
var ErrOffline = errors.New("chainclienttest: validator unreachable")

// FakeValidatorNode implements updater.Transport by signing votes directly,
// without running a local executor of its own: it trusts the caller's
// proposal/certificate as the value to vote on, which is enough to drive
// pkg/chainclient's quorum-collection and recovery logic under controlled
// fault conditions.
type FakeValidatorNode struct {
	mu   sync.Mutex
	mode FaultMode

	priv *bls.PrivateKey
	pub  bls.PublicKey
}

// NewFakeValidatorNode wraps priv as a validator that starts out Honest.
func NewFakeValidatorNode(priv *bls.PrivateKey) *FakeValidatorNode {
	return &FakeValidatorNode{priv: priv, pub: *priv.PublicKey()}
}

// SetMode changes how subsequent calls are answered.
func (f *FakeValidatorNode) SetMode(mode FaultMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
}

func (f *FakeValidatorNode) currentMode() FaultMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// UploadHistory is a no-op for Honest/Byzantine: this fake has no ledger of
// its own to catch up, so it only needs to report reachability.
func (f *FakeValidatorNode) UploadHistory(ctx context.Context, chainID types.ChainID, upTo types.BlockHeight, history []*certificate.Certificate) error {
	if f.currentMode() == Offline {
		return ErrOffline
	}
	return nil
}

func (f *FakeValidatorNode) SubmitBlockProposal(ctx context.Context, proposal *certificate.BlockProposal) (*certificate.Vote, error) {
	if f.currentMode() == Offline {
		return nil, ErrOffline
	}
	block := proposal.Block
	valueHash, err := block.Hash()
	if err != nil {
		return nil, err
	}
	valueHash = f.votedValue(valueHash)
	vote := certificate.NewVote(certificate.KindValidatedBlock, block.Block.ChainID, block.Block.Height, block.Block.Epoch, proposal.Round, valueHash, f.priv, f.pub)
	return &vote, nil
}

func (f *FakeValidatorNode) FinalizeBlock(ctx context.Context, cert *certificate.Certificate) (*certificate.Vote, error) {
	if f.currentMode() == Offline {
		return nil, ErrOffline
	}
	valueHash := f.votedValue(cert.ValueHash)
	vote := certificate.NewVote(certificate.KindConfirmedBlock, cert.ChainID, cert.Height, cert.Epoch, cert.Round, valueHash, f.priv, f.pub)
	return &vote, nil
}

func (f *FakeValidatorNode) RequestLeaderTimeout(ctx context.Context, chainID types.ChainID, height types.BlockHeight, epoch types.Epoch, round types.RoundNumber) (*certificate.Vote, error) {
	if f.currentMode() == Offline {
		return nil, ErrOffline
	}
	valueHash := f.votedValue(certificate.LeaderTimeoutValueHash(chainID, height, epoch, round))
	vote := certificate.NewVote(certificate.KindLeaderTimeout, chainID, height, epoch, round, valueHash, f.priv, f.pub)
	return &vote, nil
}

// votedValue returns honest unchanged, or a value derived from it that
// disagrees with every other validator's vote when Byzantine, so quorum
// aggregation sees a split vote rather than accidentally converging.
func (f *FakeValidatorNode) votedValue(honest types.Hash) types.Hash {
	if f.currentMode() != Byzantine {
		return honest
	}
	tampered := sha256.Sum256(append(honest.Bytes(), byte('x')))
	return types.HashFromBytes(tampered[:])
}
