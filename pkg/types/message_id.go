package types

import "fmt"

// MessageID identifies exactly one outgoing message: the Index-th message
// produced by the block at ChainID/Height. Messages are addressed this way,
// rather than by a global sequence number, so a recipient chain can verify
// provenance purely from the sender's certified block history.
type MessageID struct {
	ChainID ChainID     `json:"chain_id"`
	Height  BlockHeight `json:"height"`
	Index   uint32      `json:"index"`
}

func (m MessageID) String() string {
	return fmt.Sprintf("%s:%d:%d", m.ChainID, m.Height, m.Index)
}
