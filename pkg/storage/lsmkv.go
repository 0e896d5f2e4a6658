package storage

import (
	dbm "github.com/cometbft/cometbft-db"
)

// LSMKV wraps a cometbft-db handle (goleveldb by default, also buildable
// against badger/rocksdb/boltdb backends of that library) so the chain
// client can keep block and certificate history on an embedded LSM store
// without depending on an external database process.
type LSMKV struct {
	db dbm.DB
}

// OpenLSMKV opens (creating if absent) an LSM-backed KV store at dir, using
// the named cometbft-db backend ("goleveldb", "badgerdb", ...).
func OpenLSMKV(name, dir, backend string) (*LSMKV, error) {
	db, err := dbm.NewDB(name, dbm.BackendType(backend), dir)
	if err != nil {
		return nil, err
	}
	return &LSMKV{db: db}, nil
}

func NewLSMKV(db dbm.DB) *LSMKV { return &LSMKV{db: db} }

func (a *LSMKV) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Get(key)
}

// Set writes with SetSync so a confirmed block or certificate is durable
// before the caller advances past it.
func (a *LSMKV) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

func (a *LSMKV) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
