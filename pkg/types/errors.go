package types

import "errors"

var (
	// ErrAmountOverflow is returned when an Amount arithmetic operation would
	// exceed the maximum representable value.
	ErrAmountOverflow = errors.New("types: amount overflow")

	// ErrAmountUnderflow is returned when a subtraction would make an Amount
	// negative. Amounts never go negative; callers must check balances first.
	ErrAmountUnderflow = errors.New("types: amount underflow")

	// ErrInvalidChainID is returned when a ChainID cannot be parsed from its
	// textual or binary representation.
	ErrInvalidChainID = errors.New("types: invalid chain id")

	// ErrInvalidMessageID is returned when a MessageID string cannot be parsed.
	ErrInvalidMessageID = errors.New("types: invalid message id")
)
