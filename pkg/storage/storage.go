// Package storage implements the durable state behind the local node: the
// confirmed block history, certificates, chain heads, and committee
// snapshots a chain needs across restarts. It defines a small KV interface
// and layers three backends over it (in-memory, an LSM-like embedded store
// via cometbft-db, and Postgres), matching the interchangeable-backend
// pattern the teacher's ledger package used for its own storage.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linera-io/linera-chainclient/pkg/certificate"
	"github.com/linera-io/linera-chainclient/pkg/types"
)

// ErrNotFound is returned when a key has no value, the storage-layer
// counterpart of a chain simply not having reached a given height yet.
var ErrNotFound = errors.New("storage: not found")

// KV is the minimal key-value contract every backend implements. It
// mirrors the teacher's ledger.KV interface: a store only ever needs to
// get and set, never delete or scan, because every key here is either
// write-once (blocks, certificates) or a small fixed set of cursors
// (chain heads) that is simply overwritten.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// ====== Key layout ======
//
// Every key is prefixed by a short tag and, where applicable, the chain id
// and a big-endian height so that lexicographic key order matches block
// order — the same convention the teacher's ledger store used for its
// system-ledger block keys.

const (
	prefixBlock      = "block:"      // + chainID + height -> ExecutedBlock
	prefixCert       = "cert:"       // + chainID + height -> Certificate (confirmed)
	prefixHead       = "head:"       // + chainID -> chainHead
	prefixCommittee  = "committee:"  // + chainID + epoch -> Committee snapshot
	prefixInboxCursor = "inbox:"     // + chainID -> next unconsumed MessageID index
)

func blockKey(chain types.ChainID, height types.BlockHeight) []byte {
	return appendHeight([]byte(prefixBlock+chain.String()+":"), height)
}

func certKey(chain types.ChainID, height types.BlockHeight) []byte {
	return appendHeight([]byte(prefixCert+chain.String()+":"), height)
}

func headKey(chain types.ChainID) []byte {
	return []byte(prefixHead + chain.String())
}

func committeeKey(chain types.ChainID, epoch types.Epoch) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(epoch))
	return append([]byte(prefixCommittee+chain.String()+":"), b...)
}

func inboxCursorKey(chain types.ChainID) []byte {
	return []byte(prefixInboxCursor + chain.String())
}

func appendHeight(prefix []byte, height types.BlockHeight) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(height))
	return append(prefix, b...)
}

// chainHead is the small cursor a chain keeps for "where am I": its highest
// confirmed block height and the hash that certifies it.
type chainHead struct {
	Height types.BlockHeight `json:"height"`
	Hash   types.Hash        `json:"hash"`
}

// CommitteeSnapshot is the serializable form of a committee, persisted per
// epoch so a client or local node can validate certificates from epochs it
// is no longer actively tracking in memory.
type CommitteeSnapshot struct {
	Epoch      types.Epoch                  `json:"epoch"`
	Validators []CommitteeSnapshotValidator `json:"validators"`
}

type CommitteeSnapshotValidator struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	PublicKey string `json:"public_key"` // hex-encoded BLS public key
	Weight    uint64 `json:"weight"`
}

// Store is the high-level façade the local node uses; it never touches a
// KV backend's key format directly, mirroring how LedgerStore wrapped
// ledger.KV in the teacher.
type Store struct {
	kv KV
}

func New(kv KV) *Store { return &Store{kv: kv} }

func (s *Store) SaveBlock(chain types.ChainID, block *types.ExecutedBlock) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("storage: marshal block: %w", err)
	}
	return s.kv.Set(blockKey(chain, block.Block.Height), data)
}

func (s *Store) LoadBlock(chain types.ChainID, height types.BlockHeight) (*types.ExecutedBlock, error) {
	data, err := s.kv.Get(blockKey(chain, height))
	if err != nil {
		return nil, fmt.Errorf("storage: load block: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	var block types.ExecutedBlock
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("storage: unmarshal block: %w", err)
	}
	return &block, nil
}

func (s *Store) SaveCertificate(chain types.ChainID, height types.BlockHeight, cert *certificate.Certificate) error {
	data, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("storage: marshal certificate: %w", err)
	}
	return s.kv.Set(certKey(chain, height), data)
}

func (s *Store) LoadCertificate(chain types.ChainID, height types.BlockHeight) (*certificate.Certificate, error) {
	data, err := s.kv.Get(certKey(chain, height))
	if err != nil {
		return nil, fmt.Errorf("storage: load certificate: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	var cert certificate.Certificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("storage: unmarshal certificate: %w", err)
	}
	return &cert, nil
}

// SaveHead records the chain's highest confirmed height and hash. Called
// once per successfully applied ConfirmedBlock certificate.
func (s *Store) SaveHead(chain types.ChainID, height types.BlockHeight, hash types.Hash) error {
	data, err := json.Marshal(chainHead{Height: height, Hash: hash})
	if err != nil {
		return fmt.Errorf("storage: marshal head: %w", err)
	}
	return s.kv.Set(headKey(chain), data)
}

// LoadHead returns the chain's recorded height/hash, or (0, zero hash,
// ErrNotFound) for a chain that has never confirmed a block — the state of
// a freshly opened child chain before its OpenChain certificate arrives.
func (s *Store) LoadHead(chain types.ChainID) (types.BlockHeight, types.Hash, error) {
	data, err := s.kv.Get(headKey(chain))
	if err != nil {
		return 0, types.Hash{}, fmt.Errorf("storage: load head: %w", err)
	}
	if data == nil {
		return 0, types.Hash{}, ErrNotFound
	}
	var head chainHead
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, types.Hash{}, fmt.Errorf("storage: unmarshal head: %w", err)
	}
	return head.Height, head.Hash, nil
}

func (s *Store) SaveCommittee(chain types.ChainID, snap CommitteeSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("storage: marshal committee: %w", err)
	}
	return s.kv.Set(committeeKey(chain, snap.Epoch), data)
}

func (s *Store) LoadCommittee(chain types.ChainID, epoch types.Epoch) (*CommitteeSnapshot, error) {
	data, err := s.kv.Get(committeeKey(chain, epoch))
	if err != nil {
		return nil, fmt.Errorf("storage: load committee: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	var snap CommitteeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("storage: unmarshal committee: %w", err)
	}
	return &snap, nil
}

// SaveInboxCursor records the index of the next unconsumed message in the
// chain's inbox, so process_inbox can resume after a restart without
// redelivering already-applied messages.
func (s *Store) SaveInboxCursor(chain types.ChainID, index uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, index)
	return s.kv.Set(inboxCursorKey(chain), b)
}

func (s *Store) LoadInboxCursor(chain types.ChainID) (uint64, error) {
	data, err := s.kv.Get(inboxCursorKey(chain))
	if err != nil {
		return 0, fmt.Errorf("storage: load inbox cursor: %w", err)
	}
	if data == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(data), nil
}
