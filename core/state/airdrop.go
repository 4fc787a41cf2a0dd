package state

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"keydrop/crypto"
	"keydrop/storage"
)

func airdropStorageKey(key crypto.PublicKey) []byte {
	raw := key.Bytes()
	buf := make([]byte, len(airdropRecordPrefix)+len(raw))
	copy(buf, airdropRecordPrefix)
	copy(buf[len(airdropRecordPrefix):], raw)
	return ethcrypto.Keccak256(buf)
}

type storedEscrowEntry struct {
	Balance *big.Int
}

// AirdropGet returns the escrowed balance for a redemption key.
func (m *Manager) AirdropGet(key crypto.PublicKey) (*big.Int, bool) {
	if m == nil || m.db == nil {
		return nil, false
	}
	data, err := m.db.Get(airdropStorageKey(key))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	stored := new(storedEscrowEntry)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false
	}
	if stored.Balance == nil {
		return big.NewInt(0), true
	}
	return new(big.Int).Set(stored.Balance), true
}

// AirdropPut writes the escrowed balance for a redemption key.
func (m *Manager) AirdropPut(key crypto.PublicKey, amount *big.Int) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	balance := big.NewInt(0)
	if amount != nil {
		if amount.Sign() < 0 {
			return errors.New("state: negative escrow balance")
		}
		balance = new(big.Int).Set(amount)
	}
	encoded, err := rlp.EncodeToBytes(&storedEscrowEntry{Balance: balance})
	if err != nil {
		return err
	}
	return m.db.Put(airdropStorageKey(key), encoded)
}

// AirdropDelete removes the escrow entry for a redemption key. Deleting an
// absent entry is not an error.
func (m *Manager) AirdropDelete(key crypto.PublicKey) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	err := m.db.Delete(airdropStorageKey(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}
