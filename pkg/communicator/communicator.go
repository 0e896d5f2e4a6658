// Package communicator fans a single action out to every validator in a
// committee concurrently, collects votes as they arrive, and stops waiting
// as soon as enough weight has voted to reach quorum, cancelling the
// stragglers instead of waiting on slow or unreachable validators.
package communicator

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/committee"
	"github.com/linera-io/linera-chainclient/pkg/updater"
)

// ErrorClass distinguishes a failure reported by validators holding at
// least f+1 weight (Trusted: at least one honest validator is among them,
// so it is safe to surface directly) from one reported by less weight than
// that (Sample: may be the faulty validators' doing, not the network's).
type ErrorClass int

const (
	Sample ErrorClass = iota
	Trusted
)

// CommunicationError reports that quorum could not be reached, along with
// the errors observed per validator.
type CommunicationError struct {
	Class  ErrorClass
	Errors map[string]error
}

func (e *CommunicationError) Error() string {
	return "communicator: quorum not reached"
}

var ErrNoCommittee = errors.New("communicator: no committee configured for chain")

// ValidatorUpdaters maps a validator's name to the Updater that talks to it.
type ValidatorUpdaters map[string]*updater.Updater

// FailureRecorder observes per-validator communication failures as they
// happen, so a caller can export them (as Prometheus counters, say) without
// this package knowing anything about the exporter. A nil FailureRecorder
// disables recording.
type FailureRecorder interface {
	RecordValidatorFailure(validatorName string)
}

// Communicator drives a committee-wide round for one action.
type Communicator struct {
	logger   *log.Logger
	failures FailureRecorder
}

func New(logger *log.Logger) *Communicator {
	if logger == nil {
		logger = log.Default()
	}
	return &Communicator{logger: logger}
}

// WithFailureRecorder attaches a FailureRecorder that every subsequent
// CommunicateWithQuorum call reports validator failures to.
func (co *Communicator) WithFailureRecorder(r FailureRecorder) *Communicator {
	co.failures = r
	return co
}

// voteResult pairs a validator's vote (or error) with its identity so the
// caller can weigh it against the committee.
type voteResult struct {
	validator committee.Validator
	vote      *certificate.Vote
	err       error
}

// CommunicateWithQuorum sends action to every validator in c concurrently,
// building each validator's Request via makeRequest, and returns as soon as
// the collected votes reach c's quorum threshold. Validators still in
// flight when quorum is reached have their context cancelled; their
// results are discarded. As soon as quorum can no longer be reached because
// too many validators have already failed, it returns a *CommunicationError
// listing the failures observed up to that point.
func (co *Communicator) CommunicateWithQuorum(
	ctx context.Context,
	c *committee.Committee,
	updaters ValidatorUpdaters,
	action updater.Action,
	makeRequest func(v committee.Validator) updater.Request,
) ([]certificate.Vote, error) {
	if c == nil {
		return nil, ErrNoCommittee
	}

	roundID := uuid.New()
	co.logger.Printf("[communicator] round %s: fanning out to %d validators", roundID, len(c.Validators))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan voteResult, len(c.Validators))
	var wg sync.WaitGroup
	for _, v := range c.Validators {
		u, ok := updaters[v.Name]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(v committee.Validator, u *updater.Updater) {
			defer wg.Done()
			vote, err := u.Communicate(ctx, action, makeRequest(v))
			results <- voteResult{validator: v, vote: vote, err: err}
		}(v, u)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var votes []certificate.Vote
	var votedWeight uint64
	failed := make(map[string]error)
	var failedWeight uint64

	for r := range results {
		if r.err != nil {
			co.logger.Printf("[communicator] validator %s failed: %v", r.validator.Name, r.err)
			if co.failures != nil {
				co.failures.RecordValidatorFailure(r.validator.Name)
			}
			failed[r.validator.Name] = r.err
			failedWeight += r.validator.Weight
			if failedWeight > c.TotalWeight()-c.QuorumThreshold() {
				cancel()
				return nil, &CommunicationError{Class: classify(failedWeight, c), Errors: failed}
			}
			continue
		}
		votes = append(votes, *r.vote)
		votedWeight += r.validator.Weight
		if c.HasQuorum(votedWeight) {
			cancel()
			return votes, nil
		}
	}

	return nil, &CommunicationError{Class: classify(failedWeight, c), Errors: failed}
}

// classify reports Trusted when at least f+1 weight of validators failed,
// i.e. enough that at least one honest validator must be among them, so the
// failure is authoritative rather than attributable to a single faulty
// sample.
func classify(failedWeight uint64, c *committee.Committee) ErrorClass {
	if failedWeight >= c.MaxFaultyWeight()+1 {
		return Trusted
	}
	return Sample
}
