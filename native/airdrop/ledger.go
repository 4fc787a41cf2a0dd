package airdrop

import (
	"math/big"

	"keydrop/crypto"
)

// engineState is the persistence backend for the escrow ledger. Implemented
// by core/state.Manager in production and by mocks in tests.
type engineState interface {
	AirdropGet(key crypto.PublicKey) (*big.Int, bool)
	AirdropPut(key crypto.PublicKey, amount *big.Int) error
	AirdropDelete(key crypto.PublicKey) error
}

// Ledger maps redemption public keys to escrowed amounts. An entry exists iff
// there is an outstanding unclaimed escrow for the key; repeated sponsorship
// accumulates into the existing entry. Entry points execute run-to-completion
// on the host, so the ledger needs no internal locking.
type Ledger struct {
	state engineState
}

// NewLedger wraps a state backend in ledger semantics.
func NewLedger(state engineState) *Ledger {
	return &Ledger{state: state}
}

// Credit adds amount to the entry for key, creating it at zero when absent.
// Amounts that would push the entry below zero clamp at zero.
func (l *Ledger) Credit(key crypto.PublicKey, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	balance := big.NewInt(0)
	if existing, ok := l.state.AirdropGet(key); ok {
		balance = cloneBigInt(existing)
	}
	balance.Add(balance, cloneBigInt(amount))
	if balance.Sign() < 0 {
		balance.SetInt64(0)
	}
	return l.state.AirdropPut(key, balance)
}

// DebitAll removes and returns the full entry for key. A missing entry means
// the capability and ledger have diverged or the key was already claimed.
func (l *Ledger) DebitAll(key crypto.PublicKey) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, ok := l.state.AirdropGet(key)
	if !ok {
		return nil, ErrUnknownKey
	}
	if err := l.state.AirdropDelete(key); err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}

// Peek returns the entry for key without mutating it.
func (l *Ledger) Peek(key crypto.PublicKey) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, ok := l.state.AirdropGet(key)
	if !ok {
		return nil, ErrUnknownKey
	}
	return cloneBigInt(balance), nil
}
