package types

// OperationKind enumerates the system operations a chain can execute. Each
// chain's execution state machine only needs to understand this fixed set;
// application-specific operations are out of scope for the client core.
type OperationKind string

const (
	OpTransfer          OperationKind = "transfer"
	OpClaim             OperationKind = "claim"
	OpRotateKeyPair     OperationKind = "rotate_key_pair"
	OpTransferOwnership OperationKind = "transfer_ownership"
	OpShareOwnership    OperationKind = "share_ownership"
	OpOpenChain         OperationKind = "open_chain"
	OpCloseChain        OperationKind = "close_chain"
	// OpSubscribeToNewCommittees asks AdminChain to add this chain to its
	// committee-migration subscriber list.
	OpSubscribeToNewCommittees OperationKind = "subscribe_to_new_committees"
	// OpUnsubscribeFromNewCommittees is the inverse of
	// OpSubscribeToNewCommittees.
	OpUnsubscribeFromNewCommittees OperationKind = "unsubscribe_from_new_committees"
	// OpStageNewCommittee records NewEpoch as pending, admin-chain-only.
	OpStageNewCommittee OperationKind = "stage_new_committee"
	// OpFinalizeCommittee promotes the staged epoch to current and notifies
	// every subscriber, admin-chain-only.
	OpFinalizeCommittee OperationKind = "finalize_committee"
)

// Ownership describes who may sign blocks for a chain, and with what
// relative weight when more than one owner is configured.
type Ownership struct {
	Owners        []string         `json:"owners"`
	Weights       map[string]int64 `json:"weights,omitempty"`
	SuperOwners   []string         `json:"super_owners,omitempty"`
}

// SingleOwner builds the Ownership of a chain with exactly one signer.
func SingleOwner(owner string) Ownership {
	return Ownership{Owners: []string{owner}}
}

// Operation is one system instruction within a block. Only the fields
// relevant to Kind are populated; the rest are zero values.
type Operation struct {
	Kind OperationKind `json:"kind"`

	// Transfer / Claim
	Owner       string `json:"owner,omitempty"`
	SourceChain ChainID `json:"source_chain,omitempty"`
	Recipient   ChainID `json:"recipient,omitempty"`
	Amount      Amount  `json:"amount,omitempty"`
	UserData    []byte  `json:"user_data,omitempty"`

	// RotateKeyPair / TransferOwnership / ShareOwnership
	NewPublicKey string `json:"new_public_key,omitempty"`
	Weight       int64  `json:"weight,omitempty"`

	// OpenChain
	NewOwnership Ownership `json:"new_ownership,omitempty"`

	// SubscribeToNewCommittees / UnsubscribeFromNewCommittees
	AdminChain ChainID `json:"admin_chain,omitempty"`

	// StageNewCommittee
	NewEpoch Epoch `json:"new_epoch,omitempty"`
}

func NewTransfer(owner string, recipient ChainID, amount Amount, userData []byte) Operation {
	return Operation{Kind: OpTransfer, Owner: owner, Recipient: recipient, Amount: amount, UserData: userData}
}

func NewClaim(owner string, sourceChain, recipient ChainID, amount Amount, userData []byte) Operation {
	return Operation{Kind: OpClaim, Owner: owner, SourceChain: sourceChain, Recipient: recipient, Amount: amount, UserData: userData}
}

func NewRotateKeyPair(newPublicKey string) Operation {
	return Operation{Kind: OpRotateKeyPair, NewPublicKey: newPublicKey}
}

func NewTransferOwnership(newPublicKey string) Operation {
	return Operation{Kind: OpTransferOwnership, NewPublicKey: newPublicKey}
}

func NewShareOwnership(newPublicKey string, weight int64) Operation {
	return Operation{Kind: OpShareOwnership, NewPublicKey: newPublicKey, Weight: weight}
}

func NewOpenChain(ownership Ownership) Operation {
	return Operation{Kind: OpOpenChain, NewOwnership: ownership}
}

func NewCloseChain() Operation {
	return Operation{Kind: OpCloseChain}
}

func NewSubscribeToNewCommittees(adminChain ChainID) Operation {
	return Operation{Kind: OpSubscribeToNewCommittees, AdminChain: adminChain}
}

func NewUnsubscribeFromNewCommittees(adminChain ChainID) Operation {
	return Operation{Kind: OpUnsubscribeFromNewCommittees, AdminChain: adminChain}
}

func NewStageNewCommittee(newEpoch Epoch) Operation {
	return Operation{Kind: OpStageNewCommittee, NewEpoch: newEpoch}
}

func NewFinalizeCommittee() Operation {
	return Operation{Kind: OpFinalizeCommittee}
}
