package airdrop

import (
	"errors"
	"math/big"

	"keydrop/core/types"
	"keydrop/crypto"
)

// ModuleName identifies the module for pause control and event namespacing.
const ModuleName = "airdrop"

// Entry-point names wired into the function-call access key granted by
// Sponsor. The host checks the allow-list at authorisation time; the engine
// only has to keep the two names in sync with its exported operations.
const (
	MethodClaim                 = "claim"
	MethodCreateAccountAndClaim = "create_account_and_claim"
)

// CallbackGasBudget is the computational budget attached to the continuation
// that settles an account-creation batch.
const CallbackGasBudget uint64 = 13_000_000_000_000

var (
	// ErrUnknownKey is returned when a ledger operation references a public
	// key with no outstanding escrow. During a claim this signals a replay
	// or a capability/ledger desynchronisation.
	ErrUnknownKey = errors.New("airdrop: unknown public key")
	// ErrUnauthorizedCaller is returned when a capability-gated operation is
	// invoked by anyone other than the contract account itself.
	ErrUnauthorizedCaller = errors.New("airdrop: caller must be the contract account")
	// ErrDepositTooLow is returned when a sponsor deposit does not exceed
	// the access-key funding reserve.
	ErrDepositTooLow = errors.New("airdrop: deposit must exceed the access key allowance")
	// ErrEmptyOptions is returned when an advanced account creation request
	// carries no keys and no contract code.
	ErrEmptyOptions = errors.New("airdrop: account options must include keys or contract code")
	// ErrResultCount is returned when a continuation observes anything other
	// than exactly one prior remote result. The host promises exactly one;
	// any other count is a protocol violation.
	ErrResultCount = errors.New("airdrop: expected exactly one remote result")

	errNilState   = errors.New("airdrop: state not configured")
	errNilRuntime = errors.New("airdrop: runtime not configured")
)

// DefaultAccessKeyAllowance returns the reserve deducted from every sponsor
// deposit to fund the claim access key.
func DefaultAccessKeyAllowance() *big.Int {
	allowance, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	return allowance
}

// AccessKeyMethods returns the fixed allow-list installed on every redemption
// access key.
func AccessKeyMethods() []string {
	return []string{MethodClaim, MethodCreateAccountAndClaim}
}

// Call captures the ambient context of one entry-point invocation: the
// account that invoked the contract, the public key that signed the
// originating transaction and any value attached to the call.
type Call struct {
	Caller    types.AccountID
	SignerKey crypto.PublicKey
	Deposit   *big.Int
}

// LimitedAccessKey describes one function-call key requested through the
// advanced account creation options.
type LimitedAccessKey struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Allowance *big.Int         `json:"allowance"`
	Receiver  types.AccountID  `json:"receiver_id"`
	Methods   []string         `json:"method_names"`
}

// CreateAccountOptions enumerates everything that can be attached to a newly
// provisioned account. At least one of the three fields must be populated.
type CreateAccountOptions struct {
	FullAccessKeys    []crypto.PublicKey `json:"full_access_keys"`
	LimitedAccessKeys []LimitedAccessKey `json:"limited_access_keys"`
	ContractBytes     []byte             `json:"contract_bytes"`
}

// Empty reports whether the options request nothing at all.
func (o CreateAccountOptions) Empty() bool {
	return len(o.FullAccessKeys) == 0 && len(o.LimitedAccessKeys) == 0 && len(o.ContractBytes) == 0
}

// KeyInfo is the structured answer to a key-status query.
type KeyInfo struct {
	Balance *big.Int `json:"balance"`
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
