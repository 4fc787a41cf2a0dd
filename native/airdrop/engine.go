package airdrop

import (
	"fmt"
	"math/big"

	"keydrop/core/events"
	"keydrop/core/types"
	"keydrop/crypto"
	"keydrop/native/common"
)

type airdropEvent struct {
	evt *types.Event
}

func (e airdropEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e airdropEvent) Event() *types.Event { return e.evt }

// Engine drives the sponsorship and claim workflows against the escrow ledger
// and the host runtime. A claim debits the ledger before the outcome of the
// remote account creation is known; the registered continuation later either
// finalises the debit or credits it back. Every debit therefore has exactly
// one eventual outcome even though the remote step resolves in a separate
// invocation.
type Engine struct {
	state     engineState
	runtime   Runtime
	emitter   events.Emitter
	pauses    common.PauseView
	allowance *big.Int
}

// NewEngine creates an engine with a no-op emitter and the default access key
// allowance. Callers wire state and runtime before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		allowance: DefaultAccessKeyAllowance(),
	}
}

// SetState configures the ledger persistence backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRuntime configures the host execution environment.
func (e *Engine) SetRuntime(runtime Runtime) { e.runtime = runtime }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the administrative pause view.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetAccessKeyAllowance overrides the reserve deducted from sponsor deposits.
// Passing nil restores the default.
func (e *Engine) SetAccessKeyAllowance(allowance *big.Int) {
	if allowance == nil {
		e.allowance = DefaultAccessKeyAllowance()
		return
	}
	e.allowance = new(big.Int).Set(allowance)
}

// AccessKeyAllowance returns the configured reserve.
func (e *Engine) AccessKeyAllowance() *big.Int {
	return cloneBigInt(e.allowance)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.runtime == nil {
		return errNilRuntime
	}
	return nil
}

func (e *Engine) ledger() *Ledger {
	return NewLedger(e.state)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(airdropEvent{evt: event})
}

func (e *Engine) requireSelf(call Call) error {
	if call.Caller != e.runtime.Self() {
		return ErrUnauthorizedCaller
	}
	return nil
}

// Sponsor escrows the attached deposit minus the access key allowance under
// the given public key and grants (idempotently re-grants) a function-call
// key for the claim entry points on the contract account. The grant batch
// carries no continuation: if it is rejected the ledger mutation is rolled
// back before returning.
func (e *Engine) Sponsor(call Call, key crypto.PublicKey) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if key.IsZero() {
		return crypto.ErrInvalidPublicKey
	}
	deposit := cloneBigInt(call.Deposit)
	if deposit.Cmp(e.allowance) <= 0 {
		return fmt.Errorf("%w: attached %s, reserve %s", ErrDepositTooLow, deposit, e.allowance)
	}
	amount := new(big.Int).Sub(deposit, e.allowance)

	prior, hadPrior := e.state.AirdropGet(key)
	ledger := e.ledger()
	if err := ledger.Credit(key, amount); err != nil {
		return err
	}
	grant := &Batch{
		Receiver: e.runtime.Self(),
		Actions: []Action{AddAccessKeyAction{
			Key:       key,
			Allowance: cloneBigInt(e.allowance),
			Receiver:  e.runtime.Self(),
			Methods:   AccessKeyMethods(),
		}},
	}
	if err := e.runtime.Submit(grant); err != nil {
		if hadPrior {
			_ = e.state.AirdropPut(key, cloneBigInt(prior))
		} else {
			_ = e.state.AirdropDelete(key)
		}
		return err
	}
	e.emit(NewSponsoredEvent(key, amount))
	return nil
}

// Claim drains the escrow for the signing key and transfers it to an existing
// account. The transfer batch carries no continuation: a plain transfer
// either lands as part of the remote step or the call is rejected before any
// value leaves the contract.
func (e *Engine) Claim(call Call, destination types.AccountID) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.requireSelf(call); err != nil {
		return err
	}
	if _, err := types.ParseAccountID(string(destination)); err != nil {
		return err
	}
	amount, err := e.ledger().DebitAll(call.SignerKey)
	if err != nil {
		return err
	}
	revoke := &Batch{
		Receiver: e.runtime.Self(),
		Actions:  []Action{DeleteKeyAction{Key: call.SignerKey}},
	}
	if err := e.runtime.Submit(revoke); err != nil {
		return err
	}
	transfer := &Batch{
		Receiver: destination,
		Actions:  []Action{TransferAction{Amount: amount}},
	}
	if err := e.runtime.Submit(transfer); err != nil {
		return err
	}
	e.emit(NewClaimedEvent(call.SignerKey, destination, amount))
	return nil
}

// CreateAccountAndClaim drains the escrow for the signing key and dispatches
// a composite batch that provisions the new account, installs the holder's
// key and transfers the escrowed amount. Settlement happens in
// OnAccountCreatedAndClaimed once the batch resolves.
func (e *Engine) CreateAccountAndClaim(call Call, newAccount types.AccountID, newKey crypto.PublicKey) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.requireSelf(call); err != nil {
		return err
	}
	if _, err := types.ParseAccountID(string(newAccount)); err != nil {
		return err
	}
	amount, err := e.ledger().DebitAll(call.SignerKey)
	if err != nil {
		return err
	}
	batch := &Batch{
		Receiver: newAccount,
		Actions: []Action{
			CreateAccountAction{},
			AddFullAccessKeyAction{Key: newKey},
			TransferAction{Amount: cloneBigInt(amount)},
		},
	}
	cont := Continuation{
		GasBudget: CallbackGasBudget,
		Run: func(cb Call, results []Result) error {
			_, err := e.OnAccountCreatedAndClaimed(cb, amount, results)
			return err
		},
	}
	if err := e.runtime.Then(batch, cont); err != nil {
		// The debit only stands once the batch is accepted for execution.
		_ = e.ledger().Credit(call.SignerKey, amount)
		return err
	}
	return nil
}

// OnAccountCreatedAndClaimed settles a CreateAccountAndClaim dispatch. On
// success the signer's access key is revoked, finalising the claim; on
// failure the debited amount is credited back so the holder can retry with
// the key left in place.
func (e *Engine) OnAccountCreatedAndClaimed(call Call, amount *big.Int, results []Result) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if err := e.requireSelf(call); err != nil {
		return false, err
	}
	if len(results) != 1 {
		return false, fmt.Errorf("%w: got %d", ErrResultCount, len(results))
	}
	if !results[0].Success {
		if err := e.ledger().Credit(call.SignerKey, amount); err != nil {
			return false, err
		}
		e.emit(NewClaimCompensatedEvent(call.SignerKey, amount))
		return false, nil
	}
	revoke := &Batch{
		Receiver: e.runtime.Self(),
		Actions:  []Action{DeleteKeyAction{Key: call.SignerKey}},
	}
	if err := e.runtime.Submit(revoke); err != nil {
		return false, err
	}
	e.emit(NewClaimFinalizedEvent(call.SignerKey, amount))
	return true, nil
}

// CreateAccount provisions a new account funded by the caller's attached
// deposit, independent of the escrow ledger.
func (e *Engine) CreateAccount(call Call, newAccount types.AccountID, newKey crypto.PublicKey) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if _, err := types.ParseAccountID(string(newAccount)); err != nil {
		return err
	}
	amount := cloneBigInt(call.Deposit)
	batch := &Batch{
		Receiver: newAccount,
		Actions: []Action{
			CreateAccountAction{},
			AddFullAccessKeyAction{Key: newKey},
			TransferAction{Amount: cloneBigInt(amount)},
		},
	}
	return e.dispatchCreation(call, newAccount, amount, batch)
}

// CreateAccountAdvanced provisions a new account with any combination of
// full-access keys, function-call keys and contract code. At least one of the
// three must be requested.
func (e *Engine) CreateAccountAdvanced(call Call, newAccount types.AccountID, options CreateAccountOptions) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if options.Empty() {
		return ErrEmptyOptions
	}
	if _, err := types.ParseAccountID(string(newAccount)); err != nil {
		return err
	}
	amount := cloneBigInt(call.Deposit)
	actions := []Action{
		CreateAccountAction{},
		TransferAction{Amount: cloneBigInt(amount)},
	}
	for _, key := range options.FullAccessKeys {
		actions = append(actions, AddFullAccessKeyAction{Key: key})
	}
	for _, limited := range options.LimitedAccessKeys {
		actions = append(actions, AddAccessKeyAction{
			Key:       limited.PublicKey,
			Allowance: cloneBigInt(limited.Allowance),
			Receiver:  limited.Receiver,
			Methods:   append([]string(nil), limited.Methods...),
		})
	}
	if len(options.ContractBytes) > 0 {
		actions = append(actions, DeployContractAction{Code: options.ContractBytes})
	}
	batch := &Batch{Receiver: newAccount, Actions: actions}
	return e.dispatchCreation(call, newAccount, amount, batch)
}

func (e *Engine) dispatchCreation(call Call, newAccount types.AccountID, amount *big.Int, batch *Batch) error {
	funder := call.Caller
	cont := Continuation{
		GasBudget: CallbackGasBudget,
		Run: func(cb Call, results []Result) error {
			_, err := e.OnAccountCreated(cb, funder, amount, results)
			return err
		},
	}
	return e.runtime.Then(batch, cont)
}

// OnAccountCreated settles a CreateAccount or CreateAccountAdvanced dispatch.
// The attached deposit never entered the escrow ledger, so compensation for a
// failed batch is a direct refund to the original caller.
func (e *Engine) OnAccountCreated(call Call, funder types.AccountID, amount *big.Int, results []Result) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if err := e.requireSelf(call); err != nil {
		return false, err
	}
	if len(results) != 1 {
		return false, fmt.Errorf("%w: got %d", ErrResultCount, len(results))
	}
	if !results[0].Success {
		refund := &Batch{
			Receiver: funder,
			Actions:  []Action{TransferAction{Amount: cloneBigInt(amount)}},
		}
		if err := e.runtime.Submit(refund); err != nil {
			return false, err
		}
		e.emit(NewAccountRefundedEvent(funder, amount))
		return false, nil
	}
	e.emit(NewAccountCreatedEvent(funder, amount))
	return true, nil
}

// GetKeyBalance returns the escrowed amount for a key, failing when none
// exists.
func (e *Engine) GetKeyBalance(key crypto.PublicKey) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.ledger().Peek(key)
}

// GetKeyInformation reports the escrow status of a key as a structured
// presence result rather than an error.
func (e *Engine) GetKeyInformation(key crypto.PublicKey) (*KeyInfo, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	balance, ok := e.state.AirdropGet(key)
	if !ok {
		return nil, false
	}
	return &KeyInfo{Balance: cloneBigInt(balance)}, true
}
