// Package certificate implements the vote and certificate types validators
// exchange while certifying a block: a BlockProposal signed by the chain
// owner, the per-validator votes it collects, and the three certificate
// kinds a quorum of votes can be aggregated into.
package certificate

import (
	"encoding/json"
	"errors"

	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/merkle"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

var (
	// ErrNoQuorum is returned when aggregating votes that do not yet reach
	// the committee's quorum threshold.
	ErrNoQuorum = errors.New("certificate: insufficient weight for quorum")
	// ErrSplitVote is returned when votes are present but spread across
	// more than one distinct value hash, so no single value can reach
	// quorum from the votes collected so far.
	ErrSplitVote = errors.New("certificate: votes split across conflicting values")
	// ErrWrongEpoch is returned when a vote's signer is not a member of the
	// committee the certificate is being built against.
	ErrWrongEpoch = errors.New("certificate: validator not in committee epoch")
	// ErrInvalidSignature is returned when a vote's signature does not
	// verify against its claimed signer.
	ErrInvalidSignature = errors.New("certificate: invalid vote signature")
)

// Kind distinguishes the three things a validator quorum can certify.
type Kind int

const (
	KindValidatedBlock Kind = iota
	KindConfirmedBlock
	KindLeaderTimeout
)

// String names k for logging and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindValidatedBlock:
		return "validated_block"
	case KindConfirmedBlock:
		return "confirmed_block"
	case KindLeaderTimeout:
		return "leader_timeout"
	default:
		return "unknown"
	}
}

func (k Kind) domain() string {
	switch k {
	case KindValidatedBlock:
		return bls.DomainValidatedVote
	case KindConfirmedBlock:
		return bls.DomainConfirmedVote
	case KindLeaderTimeout:
		return bls.DomainLeaderTimeout
	default:
		return ""
	}
}

// BlockProposal is the owner-signed wrapper around an ExecutedBlock that the
// ChainClient broadcasts to request votes from the committee.
type BlockProposal struct {
	Round     types.RoundNumber
	Block     types.ExecutedBlock
	Signer    string // owner public key identifier
	Signature []byte // owner signature over the block hash, opaque to this package
}

// Vote is one validator's signed endorsement of a value (an ExecutedBlock
// hash, or a leader-timeout marker) at a given round.
type Vote struct {
	Kind      Kind
	ChainID   types.ChainID
	Height    types.BlockHeight
	Epoch     types.Epoch
	Round     types.RoundNumber
	ValueHash types.Hash
	Validator bls.PublicKey
	Signature bls.Signature
}

// NewVote signs a vote of the given kind over valueHash with the validator's
// private key, domain-separated so a vote can never be replayed as a
// different kind of certificate.
func NewVote(kind Kind, chainID types.ChainID, height types.BlockHeight, epoch types.Epoch, round types.RoundNumber, valueHash types.Hash, priv *bls.PrivateKey, pub bls.PublicKey) Vote {
	sig := priv.SignWithDomain(valueHash.Bytes(), kind.domain())
	return Vote{
		Kind:      kind,
		ChainID:   chainID,
		Height:    height,
		Epoch:     epoch,
		Round:     round,
		ValueHash: valueHash,
		Validator: pub,
		Signature: *sig,
	}
}

// Verify checks a vote's signature against its claimed signer and domain.
func (v Vote) Verify() bool {
	return v.Validator.VerifyWithDomain(&v.Signature, v.ValueHash.Bytes(), v.Kind.domain())
}

// Certificate is a quorum of votes aggregated into a single BLS signature,
// certifying one of the three protocol-level facts about a chain: that a
// quorum validated a block, that a quorum confirmed it, or that a quorum
// agreed the current round timed out.
type Certificate struct {
	Kind           Kind
	ChainID        types.ChainID
	Height         types.BlockHeight
	Epoch          types.Epoch
	Round          types.RoundNumber
	ValueHash      types.Hash
	ExecutedBlock  *types.ExecutedBlock // nil for LeaderTimeout certificates
	Signers        []bls.PublicKey
	AggregateSig   bls.Signature
	AggregateWeight uint64
}

// Aggregate collects votes cast for the same (kind, chainID, height, round,
// valueHash) tuple and, once their combined committee weight reaches
// quorum, produces a Certificate. Votes for other value hashes at the same
// round are ignored by the caller's bookkeeping, not by this function: a
// caller accumulating votes as they arrive should group by ValueHash first
// and call Aggregate once a group's weight looks promising.
func Aggregate(c *committee.Committee, votes []Vote, block *types.ExecutedBlock) (*Certificate, error) {
	if len(votes) == 0 {
		return nil, ErrNoQuorum
	}
	kind := votes[0].Kind
	chainID := votes[0].ChainID
	height := votes[0].Height
	epoch := votes[0].Epoch
	round := votes[0].Round
	valueHash := votes[0].ValueHash

	var pubs []*bls.PublicKey
	var sigs []*bls.Signature
	seen := map[string]bool{}
	for _, v := range votes {
		if v.Kind != kind || v.ChainID != chainID || v.Height != height || v.Round != round || v.ValueHash != valueHash {
			return nil, ErrSplitVote
		}
		if _, err := c.Validator(v.Validator); err != nil {
			return nil, ErrWrongEpoch
		}
		if !v.Verify() {
			return nil, ErrInvalidSignature
		}
		key := v.Validator.Hex()
		if seen[key] {
			continue // duplicate vote from the same validator, don't double count
		}
		seen[key] = true
		pub := v.Validator
		sig := v.Signature
		pubs = append(pubs, &pub)
		sigs = append(sigs, &sig)
	}

	weight := c.WeightOf(distinctKeys(pubs))
	if !c.HasQuorum(weight) {
		return nil, ErrNoQuorum
	}

	aggSig, err := bls.AggregateSignatures(sigs)
	if err != nil {
		return nil, err
	}

	signers := make([]bls.PublicKey, len(pubs))
	for i, p := range pubs {
		signers[i] = *p
	}

	return &Certificate{
		Kind:            kind,
		ChainID:         chainID,
		Height:          height,
		Epoch:           epoch,
		Round:           round,
		ValueHash:       valueHash,
		ExecutedBlock:   block,
		Signers:         signers,
		AggregateSig:    *aggSig,
		AggregateWeight: weight,
	}, nil
}

// Verify checks that a certificate's aggregate signature is valid over its
// value hash for every declared signer, and that those signers' combined
// weight in c reaches quorum. This is the check a chain must pass before
// accepting a certificate produced by another party (e.g. via
// receive_certificate).
func (cert *Certificate) Verify(c *committee.Committee) error {
	if c.Epoch != cert.Epoch {
		return ErrWrongEpoch
	}
	pubs := make([]*bls.PublicKey, len(cert.Signers))
	for i := range cert.Signers {
		pubs[i] = &cert.Signers[i]
		if _, err := c.Validator(cert.Signers[i]); err != nil {
			return ErrWrongEpoch
		}
	}
	weight := c.WeightOf(cert.Signers)
	if !c.HasQuorum(weight) {
		return ErrNoQuorum
	}
	if !bls.VerifyAggregateSignatureWithDomain(&cert.AggregateSig, pubs, cert.ValueHash.Bytes(), cert.Kind.domain()) {
		return ErrInvalidSignature
	}
	return nil
}

// LeaderTimeoutValueHash is the value every honest validator votes for when
// a round times out: there is no block to hash, so the four coordinates
// that identify "this round, on this chain, is over" stand in for it. Every
// validator computes this independently from the same request, which is
// what lets their votes aggregate into one LeaderTimeout certificate.
func LeaderTimeoutValueHash(chainID types.ChainID, height types.BlockHeight, epoch types.Epoch, round types.RoundNumber) types.Hash {
	marker := struct {
		ChainID types.ChainID     `json:"chain_id"`
		Height  types.BlockHeight `json:"height"`
		Epoch   types.Epoch       `json:"epoch"`
		Round   types.RoundNumber `json:"round"`
	}{chainID, height, epoch, round}
	encoded, err := json.Marshal(marker)
	if err != nil {
		return types.Hash{}
	}
	return types.HashFromBytes(merkle.HashData(encoded))
}

func distinctKeys(pubs []*bls.PublicKey) []bls.PublicKey {
	out := make([]bls.PublicKey, len(pubs))
	for i, p := range pubs {
		out[i] = *p
	}
	return out
}
