package types

// MessageKind enumerates the system messages a block may receive in its
// inbox. Each is the effect-side counterpart of an operation executed on
// another chain.
type MessageKind string

const (
	// MessageCredit carries an incoming balance transfer.
	MessageCredit MessageKind = "credit"
	// MessageClaim asks the receiving chain to debit an owner-scoped
	// balance and forward the result as a MessageCredit to Recipient. If
	// the owner's balance there is insufficient, the claim is dropped
	// silently rather than bounced back as an error.
	MessageClaim MessageKind = "claim"
	// MessageNewCommittee announces a new committee for subscribing chains.
	MessageNewCommittee MessageKind = "new_committee"
	// MessageOpenChain is delivered to a newly created child chain, carrying
	// its initial ownership and epoch.
	MessageOpenChain MessageKind = "open_chain"
	// MessageSubscribe asks the receiving (admin) chain to add the sender to
	// its committee-migration subscriber list.
	MessageSubscribe MessageKind = "subscribe"
	// MessageUnsubscribe is the inverse of MessageSubscribe.
	MessageUnsubscribe MessageKind = "unsubscribe"
)

// OutgoingMessage is produced by executing an operation and addressed to a
// destination chain. It becomes an IncomingMessage once the destination
// chain's inbox receives it.
type OutgoingMessage struct {
	Destination   ChainID     `json:"destination"`
	Kind          MessageKind `json:"kind"`
	Authenticated string      `json:"authenticated,omitempty"`
	Amount        Amount      `json:"amount,omitempty"`
	Epoch         Epoch       `json:"epoch,omitempty"`
	NewOwnership  Ownership   `json:"new_ownership,omitempty"`
	// Recipient is only set on MessageClaim: the chain a resulting
	// MessageCredit should be forwarded to once the claim is honored.
	Recipient ChainID `json:"recipient,omitempty"`
}

// IncomingMessage is an OutgoingMessage paired with the MessageID that
// produced it, as it appears in a recipient chain's inbox.
type IncomingMessage struct {
	ID            MessageID   `json:"id"`
	Kind          MessageKind `json:"kind"`
	Authenticated string      `json:"authenticated,omitempty"`
	Amount        Amount      `json:"amount,omitempty"`
	Epoch         Epoch       `json:"epoch,omitempty"`
	NewOwnership  Ownership   `json:"new_ownership,omitempty"`
	Recipient     ChainID     `json:"recipient,omitempty"`
}
