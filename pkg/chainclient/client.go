// Package chainclient orchestrates a single microchain: it stages
// operations, drives a Byzantine quorum of validators to certify each
// block, ingests cross-chain messages, and keeps local state synchronized
// with the authoritative validator set across epoch changes.
package chainclient

import (
	"log"
	"time"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/communicator"
	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/localnode"
	"github.com/linera-io/linera-chainclient/pkg/notifier"
	"github.com/linera-io/linera-chainclient/pkg/updater"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// Clock is injected so round-timeout checks are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Metrics observes the events a ChainClient produces while driving quorum,
// so a caller can export them (as Prometheus counters, say) without this
// package knowing anything about the exporter. A nil Metrics disables
// recording.
type Metrics interface {
	RecordBlockConfirmed(chainID string)
	RecordCertificateAggregated(kind string)
	RecordQuorumRound()
	RecordRoundTimeout()
	SetInboxDepth(chainID string, depth int)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production Clock, backed by time.Now.
var SystemClock Clock = systemClock{}

// Config bundles everything a ChainClient needs beyond the chain it runs
// against: the shared local node, the fan-out communicator, the per-
// validator updaters, a clock, and round-timeout duration.
type Config struct {
	Node         *localnode.LocalNode
	Communicator *communicator.Communicator
	Updaters     communicator.ValidatorUpdaters
	Clock        Clock
	RoundTimeout time.Duration
	Logger       *log.Logger
	// AdminID identifies the chain that governs committee migration. Nil
	// means this client does not recognize an admin chain and committee
	// migration operations (StageNewCommittee, SubscribeToNewCommittees,
	// ...) will fail.
	AdminID *types.ChainID
	// Metrics receives quorum/confirmation events, if set. Nil disables
	// recording.
	Metrics Metrics
}

// ChainClient is the per-chain handle: it owns the optional signing key
// and the staged-block bookkeeping, and shares the local node and
// communicator with every other chain's client.
type ChainClient struct {
	chainID types.ChainID
	keyPair *bls.PrivateKey // nil once ownership is transferred away

	node         *localnode.LocalNode
	communicator *communicator.Communicator
	updaters     communicator.ValidatorUpdaters
	clock        Clock
	roundTimeout time.Duration
	logger       *log.Logger

	adminID          *types.ChainID
	pendingCommittee *committee.Committee // staged by StageNewCommittee, admin chain only
	metrics          Metrics

	blockHash       types.Hash
	nextBlockHeight types.BlockHeight
	round           types.RoundNumber
	pendingBlock    *types.Block
	pendingValid    *certificate.Certificate // ValidatedBlock cert awaiting FinalizeBlock
	roundDeadline   time.Time
	closed          bool
}

// New builds a ChainClient for an existing chain, picking up its current
// height and hash from the local node.
func New(chainID types.ChainID, keyPair *bls.PrivateKey, cfg Config) (*ChainClient, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.RoundTimeout == 0 {
		cfg.RoundTimeout = 10 * time.Second
	}

	info, err := cfg.Node.HandleChainInfoQuery(chainID)
	if err != nil {
		return nil, err
	}

	return &ChainClient{
		chainID:         chainID,
		keyPair:         keyPair,
		node:            cfg.Node,
		communicator:    cfg.Communicator,
		updaters:        cfg.Updaters,
		clock:           cfg.Clock,
		roundTimeout:    cfg.RoundTimeout,
		logger:          cfg.Logger,
		adminID:         cfg.AdminID,
		metrics:         cfg.Metrics,
		blockHash:       info.LastHash,
		nextBlockHeight: info.Height,
		closed:          info.Closed,
	}, nil
}

func (c *ChainClient) ChainID() types.ChainID { return c.chainID }

func (c *ChainClient) NextBlockHeight() types.BlockHeight { return c.nextBlockHeight }

func (c *ChainClient) requireOwner() error {
	if c.keyPair == nil {
		return ErrCannotFindKeyForSingleOwnerChain
	}
	return nil
}

func (c *ChainClient) requireActive() error {
	if c.closed {
		return ErrInactiveChain
	}
	return nil
}

func (c *ChainClient) requireAdmin() error {
	if c.adminID == nil || *c.adminID != c.chainID {
		return ErrNotAdminChain
	}
	return nil
}

// currentCommittee returns the committee the local node records for this
// chain, or ErrCommitteeSynchronizationError if it has none.
func (c *ChainClient) currentCommittee() (*committee.Committee, error) {
	cm, err := c.node.Committee(c.chainID)
	if err != nil {
		return nil, err
	}
	if cm == nil {
		return nil, ErrCommitteeSynchronizationError
	}
	return cm, nil
}

func (c *ChainClient) recordQuorumRound(kind certificate.Kind) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordQuorumRound()
	c.metrics.RecordCertificateAggregated(kind.String())
}

func (c *ChainClient) recordBlockConfirmed() {
	if c.metrics != nil {
		c.metrics.RecordBlockConfirmed(c.chainID.String())
	}
}

func (c *ChainClient) recordRoundTimeout() {
	if c.metrics != nil {
		c.metrics.RecordRoundTimeout()
	}
}

// recordInboxDepth refreshes the inbox-depth gauge from the local node's
// current view, so it reflects drains and enqueues alike without every
// call site having to track the delta itself.
func (c *ChainClient) recordInboxDepth() {
	if c.metrics == nil {
		return
	}
	info, err := c.node.HandleChainInfoQuery(c.chainID)
	if err != nil {
		return
	}
	c.metrics.SetInboxDepth(c.chainID.String(), info.InboxLength)
}

// Subscribe returns the stream of notifications for this chain, per
// "listen" in the specification.
func (c *ChainClient) Subscribe() (<-chan notifier.Notification, func()) {
	return c.node.Subscribe(c.chainID)
}
