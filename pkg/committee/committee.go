// Package committee models the weighted validator set that governs a chain
// at a given epoch, and the quorum arithmetic used to decide whether a set
// of votes is authoritative.
package committee

import (
	"errors"

	"github.com/linera-io/linera-chainclient/pkg/crypto/bls"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

var (
	// ErrUnknownValidator is returned when a vote is attributed to a public
	// key not present in the committee.
	ErrUnknownValidator = errors.New("committee: unknown validator")
	// ErrEmptyCommittee is returned when building a committee with no
	// validators; a committee must always have positive total weight.
	ErrEmptyCommittee = errors.New("committee: empty validator set")
)

// Validator is one member of a committee: its network address for the
// Updater/Communicator to dial, its BLS public key for vote verification,
// and its voting weight.
type Validator struct {
	Name      string
	Address   string
	PublicKey bls.PublicKey
	Weight    uint64
}

// Committee is the immutable, epoch-scoped set of validators governing a
// chain. A new Committee value is created for every epoch; none of its
// fields are ever mutated after construction, matching the design note
// that a committee is shared immutable data snapshotted at each block
// height.
type Committee struct {
	Epoch       types.Epoch
	Validators  []Validator
	totalWeight uint64
	// ResourcePricing expresses the fee schedule this committee charges for
	// block execution; nil means the chain is not fee-metered.
	ResourcePricing *ResourcePricing
}

// ResourcePricing is the per-committee fee schedule applied when executing
// a block, expressed per unit of the named resources.
type ResourcePricing struct {
	FuelUnitPrice      types.Amount
	StorageUnitPrice   types.Amount
	MessageUnitPrice   types.Amount
	OperationUnitPrice types.Amount
}

// New builds a Committee from its validator set. Weights are taken as given;
// callers are expected to normalize them (e.g. equal weight per validator)
// before construction if that is the desired policy.
func New(epoch types.Epoch, validators []Validator, pricing *ResourcePricing) (*Committee, error) {
	if len(validators) == 0 {
		return nil, ErrEmptyCommittee
	}
	var total uint64
	for _, v := range validators {
		total += v.Weight
	}
	return &Committee{
		Epoch:           epoch,
		Validators:      append([]Validator(nil), validators...),
		totalWeight:     total,
		ResourcePricing: pricing,
	}, nil
}

// TotalWeight returns the sum of all validator weights in the committee.
func (c *Committee) TotalWeight() uint64 { return c.totalWeight }

// MaxFaultyWeight returns f, the maximum weight of validators that may be
// Byzantine while the committee as a whole remains safe: the largest f such
// that 3f+1 <= total weight.
func (c *Committee) MaxFaultyWeight() uint64 {
	return (c.totalWeight - 1) / 3
}

// QuorumThreshold returns the minimum weight, 2f+1, required for a
// certificate to be valid under this committee.
func (c *Committee) QuorumThreshold() uint64 {
	return 2*c.MaxFaultyWeight() + 1
}

// HasQuorum reports whether the given weight meets or exceeds 2f+1 for this
// committee.
func (c *Committee) HasQuorum(weight uint64) bool {
	return weight >= c.QuorumThreshold()
}

// Validator looks up a committee member by its public key. Returns
// ErrUnknownValidator if no member matches, which callers use to reject
// votes from outside the declared epoch's committee.
func (c *Committee) Validator(pub bls.PublicKey) (Validator, error) {
	for _, v := range c.Validators {
		if v.PublicKey.Equal(&pub) {
			return v, nil
		}
	}
	return Validator{}, ErrUnknownValidator
}

// WeightOf sums the weight of the given set of public keys, skipping any
// key not present in the committee. Used to compute the aggregate weight
// behind a set of collected votes.
func (c *Committee) WeightOf(pubs []bls.PublicKey) uint64 {
	var total uint64
	for _, pub := range pubs {
		if v, err := c.Validator(pub); err == nil {
			total += v.Weight
		}
	}
	return total
}
