// Package updater drives a single validator through the steps needed to
// bring it up to date and collect its vote on a block: uploading any
// history it is missing, submitting the block proposal, and finalizing
// once a quorum of votes exists. It retries transient communication
// failures with backoff and reports protocol faults upward instead of
// retrying them.
package updater

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// State is the updater's position in its per-validator state machine.
type State int

const (
	Idle State = iota
	UploadingHistory
	Voting
	Finalizing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UploadingHistory:
		return "uploading_history"
	case Voting:
		return "voting"
	case Finalizing:
		return "finalizing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Action is the single enum driving every state transition.
type Action int

const (
	AdvanceToNextBlockHeight Action = iota
	SubmitBlockProposal
	FinalizeBlock
	RequestLeaderTimeout
)

// Transport is everything an Updater needs from a validator connection.
// Any transport, such as the test fakes in pkg/chainclienttest, satisfies
// this with no further dependency on the wire format.
type Transport interface {
	// UploadHistory sends every certificate the validator is missing, up
	// to and including upToHeight, so it can catch up before voting.
	UploadHistory(ctx context.Context, chainID types.ChainID, upToHeight types.BlockHeight, history []*certificate.Certificate) error
	// SubmitBlockProposal sends a proposal and returns the validator's vote.
	SubmitBlockProposal(ctx context.Context, proposal *certificate.BlockProposal) (*certificate.Vote, error)
	// FinalizeBlock sends a certificate (typically a ValidatedBlock quorum
	// certificate) asking the validator to vote to confirm it.
	FinalizeBlock(ctx context.Context, cert *certificate.Certificate) (*certificate.Vote, error)
	// RequestLeaderTimeout asks the validator to vote for a round timeout.
	RequestLeaderTimeout(ctx context.Context, chainID types.ChainID, height types.BlockHeight, epoch types.Epoch, round types.RoundNumber) (*certificate.Vote, error)
}

// RetryPolicy bounds the backoff applied to ClientIO-class errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Updater advances a single validator toward agreement on one block. It is
// not safe for concurrent use by multiple goroutines against the same
// chain height; the caller supplies one Updater per validator, and the
// communicator drives each from a single goroutine per round.
type Updater struct {
	validator committee.Validator
	transport Transport
	policy    RetryPolicy
	logger    *log.Logger

	state State
}

func New(validator committee.Validator, transport Transport, policy RetryPolicy, logger *log.Logger) *Updater {
	if logger == nil {
		logger = log.Default()
	}
	return &Updater{validator: validator, transport: transport, policy: policy, logger: logger, state: Idle}
}

func (u *Updater) State() State {
	return u.state
}

// Communicate runs a single action against the validator, retrying every
// failure that is not ErrFaulty (ErrClientIO and any other transport error)
// with capped exponential backoff and jitter.
// A result satisfying errors.Is(err, ErrFaulty) is returned immediately,
// never retried, and leaves the updater in the Failed state.
func (u *Updater) Communicate(ctx context.Context, action Action, req Request) (*certificate.Vote, error) {
	switch action {
	case AdvanceToNextBlockHeight:
		u.state = UploadingHistory
	case SubmitBlockProposal:
		u.state = Voting
	case FinalizeBlock, RequestLeaderTimeout:
		u.state = Finalizing
	}

	vote, err := u.withRetry(ctx, func(ctx context.Context) (*certificate.Vote, error) {
		return u.dispatch(ctx, action, req)
	})
	if err != nil {
		if IsFaulty(err) {
			u.state = Failed
		}
		return nil, err
	}
	u.state = Idle
	return vote, nil
}

func (u *Updater) dispatch(ctx context.Context, action Action, req Request) (*certificate.Vote, error) {
	switch action {
	case AdvanceToNextBlockHeight:
		return nil, u.transport.UploadHistory(ctx, req.ChainID, req.UpToHeight, req.History)
	case SubmitBlockProposal:
		return u.transport.SubmitBlockProposal(ctx, req.Proposal)
	case FinalizeBlock:
		return u.transport.FinalizeBlock(ctx, req.Certificate)
	case RequestLeaderTimeout:
		return u.transport.RequestLeaderTimeout(ctx, req.ChainID, req.UpToHeight, req.Epoch, req.Round)
	default:
		return nil, ErrFaulty
	}
}

// Request carries every field any Action might need; only the fields
// relevant to the chosen Action are read.
type Request struct {
	ChainID     types.ChainID
	UpToHeight  types.BlockHeight
	Epoch       types.Epoch
	Round       types.RoundNumber
	History     []*certificate.Certificate
	Proposal    *certificate.BlockProposal
	Certificate *certificate.Certificate
}

func (u *Updater) withRetry(ctx context.Context, fn func(context.Context) (*certificate.Vote, error)) (*certificate.Vote, error) {
	var lastErr error
	for attempt := 0; attempt < u.policy.MaxAttempts; attempt++ {
		vote, err := fn(ctx)
		if err == nil {
			return vote, nil
		}
		if IsFaulty(err) {
			u.logger.Printf("[updater] validator %s: permanent fault: %v", u.validator.Name, err)
			return nil, err
		}
		lastErr = err
		if attempt == u.policy.MaxAttempts-1 {
			break
		}
		delay := backoff(u.policy, attempt)
		u.logger.Printf("[updater] validator %s: retryable error (attempt %d/%d), backing off %s: %v",
			u.validator.Name, attempt+1, u.policy.MaxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, ErrMaxRetriesExceeded
}

func backoff(p RetryPolicy, attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2 + 1))
	return d/2 + jitter
}

// IsFaulty reports whether err represents a permanent protocol violation
// rather than a transient communication failure.
func IsFaulty(err error) bool {
	return errors.Is(err, ErrFaulty)
}
