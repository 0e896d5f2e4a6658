package chainclient

import "errors"

var (
	// ErrCannotFindKeyForSingleOwnerChain is returned when a mutating call
	// needs a signing key but ownership was transferred away or never held.
	ErrCannotFindKeyForSingleOwnerChain = errors.New("chainclient: no signing key for this chain")
	// ErrWalletSynchronizationError means local height lags the quorum;
	// call SynchronizeFromValidators first.
	ErrWalletSynchronizationError = errors.New("chainclient: local state lags the validator quorum")
	// ErrInsufficientFunding means speculative execution detected a
	// shortfall before any proposal was broadcast.
	ErrInsufficientFunding = errors.New("chainclient: insufficient funding")
	// ErrCommitteeSynchronizationError means a certificate referenced an
	// epoch this client does not recognize.
	ErrCommitteeSynchronizationError = errors.New("chainclient: unknown committee epoch")
	// ErrCommitteeDeprecationError means a certificate referenced an epoch
	// the admin chain has already retired.
	ErrCommitteeDeprecationError = errors.New("chainclient: committee epoch has been deprecated")
	// ErrInactiveChain means close_chain has already been called.
	ErrInactiveChain = errors.New("chainclient: chain is closed")
	// ErrMissingVoteInValidatorResponse means quorum was not reached when
	// the caller expected it (e.g. a leader timeout requested early).
	ErrMissingVoteInValidatorResponse = errors.New("chainclient: quorum not reached")
	// ErrNoPendingBlock is returned by operations that require a staged
	// block (retry_pending_block) when none exists.
	ErrNoPendingBlock = errors.New("chainclient: no pending block")
	// ErrNotAdminChain is returned when committee-migration calls are made
	// against a chain that is not the admin chain.
	ErrNotAdminChain = errors.New("chainclient: operation is admin-chain only")
	// ErrNoPendingCommittee is returned by FinalizeCommittee when
	// StageNewCommittee was not called first.
	ErrNoPendingCommittee = errors.New("chainclient: no committee staged")
	// ErrUnknownApplication is returned by QueryApplication for any id other
	// than SystemApplicationID.
	ErrUnknownApplication = errors.New("chainclient: unknown application id")
)
