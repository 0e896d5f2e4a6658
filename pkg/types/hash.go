package types

import "encoding/hex"

// Hash is a 32-byte SHA256 digest, used for block hashes and the roots of
// the operation/message commitments inside a block.
type Hash [32]byte

var ZeroHash = Hash{}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, h[:])
	return out
}

func (h Hash) IsZero() bool { return h == ZeroHash }

func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ErrInvalidChainID
	}
	if len(b) != 32 {
		return ErrInvalidChainID
	}
	copy(h[:], b)
	return nil
}

func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}
