package state

import (
	"bytes"
	"math/big"
	"testing"

	"keydrop/core/types"
	"keydrop/crypto"
	"keydrop/storage"
)

func testManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func testKey(fill byte) crypto.PublicKey {
	key, err := crypto.NewPublicKey(bytes.Repeat([]byte{fill}, crypto.PublicKeySize))
	if err != nil {
		panic(err)
	}
	return key
}

func TestAirdropEntryRoundTrip(t *testing.T) {
	m := testManager()
	key := testKey(0x01)

	if _, ok := m.AirdropGet(key); ok {
		t.Fatal("fresh manager must have no entry")
	}
	if err := m.AirdropPut(key, big.NewInt(12345)); err != nil {
		t.Fatalf("put: %v", err)
	}
	balance, ok := m.AirdropGet(key)
	if !ok {
		t.Fatal("entry must exist after put")
	}
	if balance.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("expected 12345, got %s", balance)
	}
	if err := m.AirdropDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.AirdropGet(key); ok {
		t.Fatal("entry must be gone after delete")
	}
	// Deleting twice is not an error.
	if err := m.AirdropDelete(key); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestAirdropPutRejectsNegative(t *testing.T) {
	m := testManager()
	if err := m.AirdropPut(testKey(0x02), big.NewInt(-1)); err == nil {
		t.Fatal("negative balance must be rejected")
	}
}

func TestAirdropEntriesAreIsolatedByKey(t *testing.T) {
	m := testManager()
	first := testKey(0x03)
	second := testKey(0x04)

	if err := m.AirdropPut(first, big.NewInt(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.AirdropPut(second, big.NewInt(2)); err != nil {
		t.Fatalf("put: %v", err)
	}
	balance, ok := m.AirdropGet(first)
	if !ok || balance.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("first entry corrupted: %v %v", balance, ok)
	}
	if err := m.AirdropDelete(first); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.AirdropGet(second); !ok {
		t.Fatal("deleting one key must not touch another")
	}
}

func TestAccountRoundTrip(t *testing.T) {
	m := testManager()

	if _, ok, err := m.AccountGet("alice"); err != nil || ok {
		t.Fatalf("fresh manager must report absence (ok=%v err=%v)", ok, err)
	}
	account := &types.Account{Balance: big.NewInt(999), Nonce: 7, CodeHash: []byte{0xAB}}
	if err := m.AccountPut("alice", account); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok, err := m.AccountGet("alice")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if loaded.Balance.Cmp(big.NewInt(999)) != 0 || loaded.Nonce != 7 || !bytes.Equal(loaded.CodeHash, []byte{0xAB}) {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestAccessKeyRoundTrip(t *testing.T) {
	m := testManager()
	key := testKey(0x05)

	record := &types.AccessKey{
		PublicKey: key,
		Allowance: big.NewInt(1_000_000),
		Receiver:  "airdrop",
		Methods:   []string{"claim", "create_account_and_claim"},
	}
	if err := m.AccessKeyPut("airdrop", record); err != nil {
		t.Fatalf("put: %v", err)
	}
	loaded, ok, err := m.AccessKeyGet("airdrop", key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if loaded.FullAccess {
		t.Fatal("stored key must stay function-call scoped")
	}
	if loaded.Allowance.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("allowance mismatch: %s", loaded.Allowance)
	}
	if loaded.Receiver != "airdrop" || len(loaded.Methods) != 2 {
		t.Fatalf("record mismatch: %+v", loaded)
	}
	if !loaded.PermitsCall("airdrop", "claim") {
		t.Fatal("loaded key must permit claim on the contract")
	}
	if loaded.PermitsCall("other", "claim") {
		t.Fatal("loaded key must not permit other receivers")
	}

	if err := m.AccessKeyDelete("airdrop", key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.AccessKeyGet("airdrop", key); ok {
		t.Fatal("key must be gone after delete")
	}
}
