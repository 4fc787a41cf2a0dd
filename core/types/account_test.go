package types

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseAccountIDAcceptsValidNames(t *testing.T) {
	for _, name := range []string{
		"ok",
		"bob",
		"bowen",
		"ek-2",
		"ek.near",
		"com",
		"google.com",
		"bowen.google.com",
		"illia.near",
		"10-4.8-2",
		"b-o_w_e-n",
		"no_lols",
		"0123456789012345678901234567890123456789012345678901234567890123",
	} {
		if _, err := ParseAccountID(name); err != nil {
			t.Fatalf("%q must be valid: %v", name, err)
		}
	}
}

func TestParseAccountIDRejectsInvalidNames(t *testing.T) {
	for _, name := range []string{
		"",
		"a",
		"A",
		"XYZ",
		"Abc",
		"-near",
		"near-",
		"-near-",
		"near.",
		".near",
		"near@",
		"@near",
		"сбер",
		"b-o_w_e-n_",
		"_illia",
		"some random string",
		"01234567890123456789012345678901234567890123456789012345678901234",
	} {
		if _, err := ParseAccountID(name); !errors.Is(err, ErrInvalidAccountID) {
			t.Fatalf("%q must be invalid, got %v", name, err)
		}
	}
}

func TestAccountCloneIsDeep(t *testing.T) {
	account := &Account{Balance: big.NewInt(10), CodeHash: []byte{1, 2}}
	clone := account.Clone()
	clone.Balance.SetInt64(99)
	clone.CodeHash[0] = 9

	if account.Balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatal("clone must not share the balance")
	}
	if account.CodeHash[0] != 1 {
		t.Fatal("clone must not share the code hash")
	}
}

func TestAccessKeyPermitsCall(t *testing.T) {
	key := &AccessKey{
		Receiver: "airdrop",
		Methods:  []string{"claim", "create_account_and_claim"},
	}
	if !key.PermitsCall("airdrop", "claim") {
		t.Fatal("allow-listed method must be permitted")
	}
	if key.PermitsCall("airdrop", "sponsor") {
		t.Fatal("method outside the allow-list must be denied")
	}
	if key.PermitsCall("elsewhere", "claim") {
		t.Fatal("other receivers must be denied")
	}

	full := &AccessKey{FullAccess: true}
	if !full.PermitsCall("anywhere", "anything") {
		t.Fatal("full access keys are unrestricted")
	}
}
