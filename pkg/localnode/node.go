// Package localnode implements the worker behind a chain: the speculative
// executor, the inbox, and the per-chain mutex that serializes access to
// that state, wrapped in a façade (LocalNode) that is the only thing the
// rest of the client ever touches directly.
package localnode

import (
	"encoding/json"
	"sync"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/execution"
	"github.com/linera-io/linera-chainclient/pkg/merkle"
	"github.com/linera-io/linera-chainclient/pkg/notifier"
	"github.com/linera-io/linera-chainclient/pkg/storage"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// ChainInfo is a point-in-time snapshot of a chain's state, returned by
// handle_chain_info_query.
type ChainInfo struct {
	ChainID      types.ChainID
	Height       types.BlockHeight
	LastHash     types.Hash
	Epoch        types.Epoch
	Balance      types.Amount
	Round        types.RoundNumber
	HasPending   bool
	InboxLength  int
	Closed       bool
}

// chainEntry holds everything the worker tracks for one chain, protected by
// its own mutex so that speculative execution for chain A never blocks
// progress on chain B.
type chainEntry struct {
	mu sync.Mutex

	execState execution.State
	height    types.BlockHeight
	lastHash  types.Hash
	round     types.RoundNumber
	committee *committee.Committee

	pendingBlock     *types.Block
	pendingValidated *certificate.Certificate // most recent ValidatedBlock, awaiting confirmation

	inbox []types.IncomingMessage
}

// Worker is the low-level executor. LocalNode is the façade most callers
// use; Worker is exposed for components (like a test harness emulating a
// validator) that need direct access to speculative execution.
type Worker struct {
	mu       sync.Mutex // protects the chains map itself, not chain contents
	chains   map[types.ChainID]*chainEntry
	store    *storage.Store
	notifier *notifier.Notifier
}

func NewWorker(store *storage.Store, n *notifier.Notifier) *Worker {
	return &Worker{
		chains:   make(map[types.ChainID]*chainEntry),
		store:    store,
		notifier: n,
	}
}

// InitChain registers a chain the worker has not seen before, with its
// genesis ownership, epoch, committee, and opening balance. Safe to call
// once per chain; calling it again for an existing chain id resets nothing
// and has no effect.
func (w *Worker) InitChain(chainID types.ChainID, ownership types.Ownership, epoch types.Epoch, c *committee.Committee, openingBalance types.Amount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.chains[chainID]; ok {
		return
	}
	w.chains[chainID] = &chainEntry{
		execState: execution.State{Ownership: ownership, Epoch: epoch, Balance: openingBalance},
		committee: c,
	}
}

func (w *Worker) entry(chainID types.ChainID) (*chainEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.chains[chainID]
	if !ok {
		return nil, ErrChainNotFound
	}
	return e, nil
}

// ExecuteSpeculatively runs block against the chain's current committed
// state without mutating it, returning the resulting ExecutedBlock. This is
// the first step of propose-and-certify and the whole of local_balance.
func (w *Worker) ExecuteSpeculatively(chainID types.ChainID, block types.Block) (*types.ExecutedBlock, error) {
	e, err := w.entry(chainID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	newState, outgoing, err := execution.Apply(e.execState, &block, pricingOf(e.committee))
	if err != nil {
		return nil, err
	}
	stateHash := stateHash(newState)
	return &types.ExecutedBlock{Block: block, StateHash: stateHash, OutgoingMessages: outgoing}, nil
}

// HandleBlockProposal records the proposer's staged block as this chain's
// pending block, for bookkeeping while votes are collected. It does not
// execute or validate beyond confirming the round is not stale.
func (w *Worker) HandleBlockProposal(chainID types.ChainID, proposal *certificate.BlockProposal) error {
	e, err := w.entry(chainID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if proposal.Round.Less(e.round) {
		return ErrStaleCertificate
	}
	block := proposal.Block.Block
	e.pendingBlock = &block
	e.round = proposal.Round
	return nil
}

// HandleCertificate applies a certificate the client has gathered or
// received from another chain. ValidatedBlock certificates are recorded as
// the chain's most recent validated proposal; ConfirmedBlock certificates
// are committed, advancing the chain; LeaderTimeout certificates advance
// the round without touching execution state.
func (w *Worker) HandleCertificate(chainID types.ChainID, cert *certificate.Certificate) error {
	e, err := w.entry(chainID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cert.Kind {
	case certificate.KindLeaderTimeout:
		e.round = cert.Round.Next()
		e.pendingBlock = nil
		if w.notifier != nil {
			w.notifier.Publish(notifier.NewRound(chainID, e.height, e.round))
		}
		return nil

	case certificate.KindValidatedBlock:
		e.pendingValidated = cert
		return nil

	case certificate.KindConfirmedBlock:
		if cert.ExecutedBlock == nil {
			return ErrUnexpectedCertificateKind
		}
		if cert.Height != e.height {
			return ErrStaleCertificate
		}
		newState, outgoing, err := execution.Apply(e.execState, &cert.ExecutedBlock.Block, pricingOf(e.committee))
		if err != nil {
			return err
		}
		e.execState = newState
		e.height++
		hash, err := cert.ExecutedBlock.Hash()
		if err != nil {
			return err
		}
		e.lastHash = hash
		e.round = types.ZeroRound
		e.pendingBlock = nil
		e.pendingValidated = nil

		if w.store != nil {
			if err := w.store.SaveBlock(chainID, cert.ExecutedBlock); err != nil {
				return err
			}
			if err := w.store.SaveCertificate(chainID, cert.Height, cert); err != nil {
				return err
			}
			if err := w.store.SaveHead(chainID, e.height, e.lastHash); err != nil {
				return err
			}
		}
		if w.notifier != nil {
			w.notifier.Publish(notifier.NewBlock(chainID, e.height, e.lastHash))
		}
		_ = outgoing // delivered to destination chains by the chain client, not the worker
		return nil

	default:
		return ErrUnexpectedCertificateKind
	}
}

// EnqueueIncoming appends a message to chainID's inbox, called when a
// certificate produced elsewhere names this chain as a destination.
func (w *Worker) EnqueueIncoming(chainID types.ChainID, msg types.IncomingMessage) error {
	e, err := w.entry(chainID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inbox = append(e.inbox, msg)
	if w.notifier != nil {
		w.notifier.Publish(notifier.NewIncomingMessage(chainID, msg.ID.ChainID, msg.ID.Height))
	}
	return nil
}

// DrainInbox removes and returns every queued incoming message, for
// process_inbox to bundle into a block.
func (w *Worker) DrainInbox(chainID types.ChainID) ([]types.IncomingMessage, error) {
	e, err := w.entry(chainID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	drained := e.inbox
	e.inbox = nil
	return drained, nil
}

// PeekInbox returns a copy of the currently queued incoming messages without
// removing them, for local_balance's speculative preview.
func (w *Worker) PeekInbox(chainID types.ChainID) ([]types.IncomingMessage, error) {
	e, err := w.entry(chainID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.IncomingMessage(nil), e.inbox...), nil
}

// ChainInfoQuery returns a snapshot of a chain's current state.
func (w *Worker) ChainInfoQuery(chainID types.ChainID) (*ChainInfo, error) {
	e, err := w.entry(chainID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return &ChainInfo{
		ChainID:     chainID,
		Height:      e.height,
		LastHash:    e.lastHash,
		Epoch:       e.execState.Epoch,
		Balance:     e.execState.Balance,
		Round:       e.round,
		HasPending:  e.pendingBlock != nil,
		InboxLength: len(e.inbox),
		Closed:      e.execState.Closed,
	}, nil
}

// QueryApplication answers a read-only query against the chain's system
// state. This module implements only the system application (balance,
// ownership, epoch); user application queries are out of scope.
func (w *Worker) QueryApplication(chainID types.ChainID) (execution.State, error) {
	e, err := w.entry(chainID)
	if err != nil {
		return execution.State{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execState.Clone(), nil
}

// Committee returns the committee currently recorded for chainID.
func (w *Worker) Committee(chainID types.ChainID) (*committee.Committee, error) {
	e, err := w.entry(chainID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.committee, nil
}

// SetCommittee installs a new committee for chainID, used when the admin
// chain finalizes a committee, for itself and for its subscribed chains.
func (w *Worker) SetCommittee(chainID types.ChainID, c *committee.Committee) error {
	e, err := w.entry(chainID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.committee = c
	return nil
}

// Subscribe registers for notifications about chainID.
func (w *Worker) Subscribe(chainID types.ChainID) (<-chan notifier.Notification, func()) {
	return w.notifier.Subscribe(chainID)
}

// pricingOf returns c's resource-pricing policy, or nil for a chain with no
// committee recorded yet (a freshly opened child chain awaiting its first
// certificate).
func pricingOf(c *committee.Committee) *committee.ResourcePricing {
	if c == nil {
		return nil
	}
	return c.ResourcePricing
}

func stateHash(s execution.State) types.Hash {
	// A content hash of the execution-relevant state, so two validators
	// that executed the same block deterministically agree on whether the
	// post-state also matches, without needing to exchange the full state.
	encoded, err := json.Marshal(s)
	if err != nil {
		return types.Hash{}
	}
	return types.HashFromBytes(merkle.HashData(encoded))
}
