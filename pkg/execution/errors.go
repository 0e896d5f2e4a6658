package execution

import "errors"

var (
	// ErrInsufficientFunding is returned when a transfer's amount exceeds
	// the chain's current balance at proposal time.
	ErrInsufficientFunding = errors.New("execution: insufficient funding")
	// ErrInactiveChain is returned for any operation proposed against a
	// chain that has already executed CloseChain.
	ErrInactiveChain = errors.New("execution: chain is inactive")
	// ErrCannotFindKeyForSingleOwnerChain is returned when an operation
	// needs a signing key the chain no longer has, after TransferOwnership.
	ErrCannotFindKeyForSingleOwnerChain = errors.New("execution: cannot find key for single-owner chain")
	// ErrUnknownOperation is returned for an Operation with an unrecognized
	// Kind; it should be unreachable given the closed OperationKind enum.
	ErrUnknownOperation = errors.New("execution: unknown operation kind")
	// ErrNoPendingCommittee is returned by FinalizeCommittee when no epoch
	// was staged first.
	ErrNoPendingCommittee = errors.New("execution: no committee staged")
)
