package state

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"keydrop/core/types"
	"keydrop/crypto"
	"keydrop/storage"
)

func accountStorageKey(id types.AccountID) []byte {
	buf := make([]byte, len(accountRecordPrefix)+len(id))
	copy(buf, accountRecordPrefix)
	copy(buf[len(accountRecordPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

func accessKeyStorageKey(id types.AccountID, key crypto.PublicKey) []byte {
	raw := key.Bytes()
	buf := make([]byte, len(accessKeyRecordPrefix)+len(id)+1+len(raw))
	copy(buf, accessKeyRecordPrefix)
	copy(buf[len(accessKeyRecordPrefix):], id)
	buf[len(accessKeyRecordPrefix)+len(id)] = '/'
	copy(buf[len(accessKeyRecordPrefix)+len(id)+1:], raw)
	return ethcrypto.Keccak256(buf)
}

type storedAccount struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash []byte
}

type storedAccessKey struct {
	PublicKey  []byte
	FullAccess bool
	Allowance  *big.Int
	Receiver   string
	Methods    []string
}

// AccountGet loads a named account. The second return reports existence: the
// host distinguishes "account absent" from "account with zero balance" when
// executing create-account batches.
func (m *Manager) AccountGet(id types.AccountID) (*types.Account, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, errNilDatabase
	}
	data, err := m.db.Get(accountStorageKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	account := &types.Account{
		Balance:  big.NewInt(0),
		Nonce:    stored.Nonce,
		CodeHash: append([]byte(nil), stored.CodeHash...),
	}
	if stored.Balance != nil {
		account.Balance = new(big.Int).Set(stored.Balance)
	}
	return account, true, nil
}

// AccountPut writes a named account record.
func (m *Manager) AccountPut(id types.AccountID, account *types.Account) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if account == nil {
		return errors.New("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		balance = new(big.Int).Set(account.Balance)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{
		Balance:  balance,
		Nonce:    account.Nonce,
		CodeHash: append([]byte(nil), account.CodeHash...),
	})
	if err != nil {
		return err
	}
	return m.db.Put(accountStorageKey(id), encoded)
}

// AccessKeyGet loads one credential attached to an account.
func (m *Manager) AccessKeyGet(id types.AccountID, key crypto.PublicKey) (*types.AccessKey, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, errNilDatabase
	}
	data, err := m.db.Get(accessKeyStorageKey(id, key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedAccessKey)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	pub, err := crypto.NewPublicKey(stored.PublicKey)
	if err != nil {
		return nil, false, err
	}
	record := &types.AccessKey{
		PublicKey:  pub,
		FullAccess: stored.FullAccess,
		Receiver:   types.AccountID(stored.Receiver),
		Methods:    append([]string(nil), stored.Methods...),
	}
	if stored.Allowance != nil {
		record.Allowance = new(big.Int).Set(stored.Allowance)
	}
	return record, true, nil
}

// AccessKeyPut writes one credential. Re-granting an existing key replaces
// the stored record.
func (m *Manager) AccessKeyPut(id types.AccountID, record *types.AccessKey) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if record == nil {
		return errors.New("state: nil access key")
	}
	allowance := big.NewInt(0)
	if record.Allowance != nil {
		allowance = new(big.Int).Set(record.Allowance)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccessKey{
		PublicKey:  record.PublicKey.Bytes(),
		FullAccess: record.FullAccess,
		Allowance:  allowance,
		Receiver:   string(record.Receiver),
		Methods:    append([]string(nil), record.Methods...),
	})
	if err != nil {
		return err
	}
	return m.db.Put(accessKeyStorageKey(id, record.PublicKey), encoded)
}

// AccessKeyDelete revokes one credential. Deleting an absent key is not an
// error.
func (m *Manager) AccessKeyDelete(id types.AccountID, key crypto.PublicKey) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	err := m.db.Delete(accessKeyStorageKey(id, key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil
	}
	return err
}
