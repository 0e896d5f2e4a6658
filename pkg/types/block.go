package types

import (
	"encoding/json"
	"time"

	"github.com/linera-io/linera-chainclient/pkg/merkle"
)

// Block is the unit of execution and certification on a chain: a height, the
// operations its owner chose to execute, and the inbox messages it consumes.
type Block struct {
	ChainID             ChainID           `json:"chain_id"`
	Height              BlockHeight       `json:"height"`
	Epoch               Epoch             `json:"epoch"`
	PreviousHash        Hash              `json:"previous_hash"`
	Timestamp           time.Time         `json:"timestamp"`
	AuthenticatedSigner string            `json:"authenticated_signer,omitempty"`
	Operations          []Operation       `json:"operations"`
	IncomingMessages    []IncomingMessage `json:"incoming_messages"`
}

// Hash computes the deterministic commitment to a block's contents. Two
// validators executing identical code over identical inputs always reach
// the same hash, which is the property the certification protocol depends
// on to agree that a quorum voted for the same block.
func (b *Block) Hash() (Hash, error) {
	opsRoot, err := contentRoot(len(b.Operations), func(i int) ([]byte, error) {
		return json.Marshal(b.Operations[i])
	})
	if err != nil {
		return Hash{}, err
	}
	msgsRoot, err := contentRoot(len(b.IncomingMessages), func(i int) ([]byte, error) {
		return json.Marshal(b.IncomingMessages[i])
	})
	if err != nil {
		return Hash{}, err
	}

	header := struct {
		ChainID             ChainID     `json:"chain_id"`
		Height              BlockHeight `json:"height"`
		Epoch               Epoch       `json:"epoch"`
		PreviousHash        Hash        `json:"previous_hash"`
		TimestampUnixNano   int64       `json:"timestamp_unix_nano"`
		AuthenticatedSigner string      `json:"authenticated_signer,omitempty"`
		OperationsRoot      Hash        `json:"operations_root"`
		MessagesRoot        Hash        `json:"messages_root"`
	}{
		ChainID:             b.ChainID,
		Height:              b.Height,
		Epoch:               b.Epoch,
		PreviousHash:        b.PreviousHash,
		TimestampUnixNano:   b.Timestamp.UnixNano(),
		AuthenticatedSigner: b.AuthenticatedSigner,
		OperationsRoot:      opsRoot,
		MessagesRoot:        msgsRoot,
	}
	encoded, err := json.Marshal(header)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(merkle.HashData(encoded)), nil
}

// contentRoot hashes n items and combines them into a single Merkle root.
// An empty list roots to the hash of an empty marker, so that a block with
// no operations still has a well-defined, non-zero operations_root.
func contentRoot(n int, marshal func(i int) ([]byte, error)) (Hash, error) {
	if n == 0 {
		return HashFromBytes(merkle.HashData([]byte("empty"))), nil
	}
	leaves := make([][]byte, n)
	for i := 0; i < n; i++ {
		encoded, err := marshal(i)
		if err != nil {
			return Hash{}, err
		}
		leaves[i] = merkle.HashData(encoded)
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return Hash{}, err
	}
	return HashFromBytes(tree.Root()), nil
}

// ExecutedBlock pairs a Block with the outcome of executing it: the
// resulting outgoing messages and the hash of the chain state afterward.
// Validators vote on the ExecutedBlock, not the bare Block, since the
// effects of execution must also reach quorum.
type ExecutedBlock struct {
	Block            Block             `json:"block"`
	StateHash        Hash              `json:"state_hash"`
	OutgoingMessages []OutgoingMessage `json:"outgoing_messages"`
}

func (e *ExecutedBlock) Hash() (Hash, error) {
	blockHash, err := e.Block.Hash()
	if err != nil {
		return Hash{}, err
	}
	msgsRoot, err := contentRoot(len(e.OutgoingMessages), func(i int) ([]byte, error) {
		return json.Marshal(e.OutgoingMessages[i])
	})
	if err != nil {
		return Hash{}, err
	}
	combined := merkle.CombineHashes(blockHash.Bytes(), e.StateHash.Bytes(), msgsRoot.Bytes())
	return HashFromBytes(combined), nil
}
