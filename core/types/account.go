package types

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"keydrop/crypto"
)

const (
	accountIDMinLength = 2
	accountIDMaxLength = 64
)

// Account names are dot-separated parts of lowercase alphanumerics where
// hyphens and underscores may only appear between two alphanumerics.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// ErrInvalidAccountID is returned when an account name does not satisfy the
// host naming constraints.
var ErrInvalidAccountID = errors.New("types: invalid account id")

// AccountID is the human-readable name of an account on the host.
type AccountID string

// ParseAccountID validates and normalises an account name.
func ParseAccountID(s string) (AccountID, error) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < accountIDMinLength || len(trimmed) > accountIDMaxLength {
		return "", fmt.Errorf("%w: must be between %d and %d characters", ErrInvalidAccountID, accountIDMinLength, accountIDMaxLength)
	}
	if !accountIDPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountID, trimmed)
	}
	return AccountID(trimmed), nil
}

// Valid reports whether the identifier satisfies the naming constraints.
func (a AccountID) Valid() bool {
	_, err := ParseAccountID(string(a))
	return err == nil
}

func (a AccountID) String() string { return string(a) }

// Account is the host-side record for a single named account: its spendable
// balance and the hash of any deployed code.
type Account struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash []byte
}

// Clone returns a deep copy so callers can mutate without touching the
// stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	} else {
		clone.Balance = big.NewInt(0)
	}
	clone.CodeHash = append([]byte(nil), a.CodeHash...)
	return &clone
}

// AccessKey is a credential attached to an account. A full-access key has no
// restrictions; a function-call key is limited to a spend allowance, a single
// receiver and a method allow-list.
type AccessKey struct {
	PublicKey  crypto.PublicKey
	FullAccess bool
	Allowance  *big.Int
	Receiver   AccountID
	Methods    []string
}

// PermitsCall reports whether the key authorises invoking method on receiver.
func (k *AccessKey) PermitsCall(receiver AccountID, method string) bool {
	if k == nil {
		return false
	}
	if k.FullAccess {
		return true
	}
	if k.Receiver != receiver {
		return false
	}
	for _, m := range k.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the access key.
func (k *AccessKey) Clone() *AccessKey {
	if k == nil {
		return nil
	}
	clone := *k
	if k.Allowance != nil {
		clone.Allowance = new(big.Int).Set(k.Allowance)
	}
	clone.Methods = append([]string(nil), k.Methods...)
	return &clone
}
