package types

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"
)

// ChainID uniquely identifies a microchain. It is opaque: either the hash of
// a chain's genesis description (for root chains created at network startup)
// or the hash of the MessageID that opened it (for chains created by an
// OpenChain operation on a parent chain).
type ChainID [32]byte

// ZeroChainID is the all-zero chain id, never assigned to a real chain.
var ZeroChainID = ChainID{}

// ChainIDFromGenesis derives the id of a root chain from its network-wide
// index. Root chains are described in the genesis configuration and exist
// before any block has been produced on them.
func ChainIDFromGenesis(networkID string, rootIndex uint32) ChainID {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("linera-root-chain"))
	h.Write([]byte(networkID))
	h.Write(encodeUint32(rootIndex))
	var id ChainID
	copy(id[:], h.Sum(nil))
	return id
}

// ChainIDFromMessage derives the id of a chain opened by the OpenChain
// message at the given MessageID. Deriving child ids from messages rather
// than from a counter keeps the derivation deterministic and collision-free
// across concurrently executing chains.
func ChainIDFromMessage(m MessageID) ChainID {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("linera-child-chain"))
	h.Write(m.ChainID[:])
	h.Write(encodeUint64(uint64(m.Height)))
	h.Write(encodeUint32(m.Index))
	var id ChainID
	copy(id[:], h.Sum(nil))
	return id
}

// ChainIDFromBytes parses a 32-byte slice into a ChainID.
func ChainIDFromBytes(b []byte) (ChainID, error) {
	if len(b) != 32 {
		return ChainID{}, ErrInvalidChainID
	}
	var id ChainID
	copy(id[:], b)
	return id, nil
}

// ChainIDFromHex parses a hex-encoded ChainID, as used in config files and
// RPC payloads.
func ChainIDFromHex(s string) (ChainID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ChainID{}, ErrInvalidChainID
	}
	return ChainIDFromBytes(b)
}

func (c ChainID) String() string {
	return hex.EncodeToString(c[:])
}

func (c ChainID) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, c[:])
	return out
}

func (c ChainID) IsZero() bool {
	return c == ZeroChainID
}

func (c ChainID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChainID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ChainIDFromHex(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}

func encodeUint32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func encodeUint64(v uint64) []byte {
	return []byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	}
}
