package types

import (
	"encoding/json"
	"math/big"
)

// attoPerUnit is the number of atto-units (10^-18) per whole token, matching
// the fixed-point precision used throughout the chain's balance accounting.
var attoPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// maxAmount bounds Amount to 2^128 - 1 atto-units. Balances, like everything
// else a chain certifies, must have a fixed, checkable representation; an
// unbounded big.Int would let a malicious proposer claim unrepresentable
// wealth and break cross-validator hashing of block contents.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is a non-negative quantity of a chain's native token, held internally
// in atto-units (10^-18 of a token) so that arithmetic never loses precision.
// The zero Amount is zero tokens.
type Amount struct {
	atto big.Int
}

// ZeroAmount is the additive identity.
func ZeroAmount() Amount { return Amount{} }

// NewAmountFromAtto builds an Amount directly from an atto-unit count.
func NewAmountFromAtto(atto uint64) Amount {
	var a Amount
	a.atto.SetUint64(atto)
	return a
}

// NewAmountFromUnits builds an Amount from a whole-token count, e.g.
// NewAmountFromUnits(5) is 5 tokens.
func NewAmountFromUnits(units uint64) Amount {
	var a Amount
	a.atto.Mul(big.NewInt(0).SetUint64(units), attoPerUnit)
	return a
}

// ParseAmount parses a decimal atto-unit string, as found in config files and
// RPC payloads. It rejects negative values and values beyond maxAmount.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, ErrAmountOverflow
	}
	if v.Sign() < 0 {
		return Amount{}, ErrAmountUnderflow
	}
	if v.Cmp(maxAmount) > 0 {
		return Amount{}, ErrAmountOverflow
	}
	a.atto.Set(v)
	return a, nil
}

func (a Amount) String() string { return a.atto.String() }

func (a Amount) IsZero() bool { return a.atto.Sign() == 0 }

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int { return a.atto.Cmp(&b.atto) }

// Add returns a+b, failing with ErrAmountOverflow if the result would exceed
// the maximum representable balance.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum big.Int
	sum.Add(&a.atto, &b.atto)
	if sum.Cmp(maxAmount) > 0 {
		return Amount{}, ErrAmountOverflow
	}
	return Amount{atto: sum}, nil
}

// Sub returns a-b, failing with ErrAmountUnderflow if b exceeds a. Chain
// execution must never create value from nothing; callers use this to
// reject operations a chain cannot afford rather than clamping to zero.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.atto.Cmp(&b.atto) < 0 {
		return Amount{}, ErrAmountUnderflow
	}
	var diff big.Int
	diff.Sub(&a.atto, &b.atto)
	return Amount{atto: diff}, nil
}

// SaturatingSub returns a-b, or zero if b exceeds a. Used by the fee-charging
// path of execution, where undercharging rather than failing the block is
// the correct degraded behavior.
func (a Amount) SaturatingSub(b Amount) Amount {
	if a.atto.Cmp(&b.atto) < 0 {
		return Amount{}
	}
	diff, _ := a.Sub(b)
	return diff
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.atto.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
