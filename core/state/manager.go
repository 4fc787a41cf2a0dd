package state

import (
	"errors"

	"keydrop/storage"
)

var (
	airdropRecordPrefix   = []byte("keydrop/airdrop/")
	accountRecordPrefix   = []byte("keydrop/account/")
	accessKeyRecordPrefix = []byte("keydrop/accesskey/")
)

var errNilDatabase = errors.New("state: database not configured")

// Manager persists module state as RLP-encoded records under keccak-derived
// keys in a storage.Database. It implements the state interfaces owned by the
// airdrop engine and the host environment.
type Manager struct {
	db storage.Database
}

// NewManager wraps a database in state semantics.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}
