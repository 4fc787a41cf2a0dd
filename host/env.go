// Package host provides an in-process implementation of the execution
// environment the airdrop engine dispatches to: a named-account registry with
// balances, access keys and deployed code, plus run-to-completion batch
// execution with all-or-nothing semantics and at-most-once continuation
// delivery.
package host

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"keydrop/core/types"
	"keydrop/crypto"
	"keydrop/native/airdrop"
)

var (
	errNilState = errors.New("host: state not configured")
	// ErrAccountExists is the batch-level failure for provisioning a name
	// that is already taken.
	ErrAccountExists = errors.New("host: account already exists")
	// ErrAccountMissing is the batch-level failure for acting on an account
	// that does not exist.
	ErrAccountMissing = errors.New("host: account does not exist")
	// ErrInsufficientBalance is the batch-level failure for a transfer the
	// contract account cannot cover.
	ErrInsufficientBalance = errors.New("host: insufficient balance")
)

type hostState interface {
	AccountGet(id types.AccountID) (*types.Account, bool, error)
	AccountPut(id types.AccountID, account *types.Account) error
	AccessKeyGet(id types.AccountID, key crypto.PublicKey) (*types.AccessKey, bool, error)
	AccessKeyPut(id types.AccountID, record *types.AccessKey) error
	AccessKeyDelete(id types.AccountID, key crypto.PublicKey) error
}

type pendingBatch struct {
	batch  *airdrop.Batch
	cont   *airdrop.Continuation
	signer crypto.PublicKey
}

// Env executes entry invocations one at a time. Batches submitted during an
// invocation are queued and resolved after the entry function returns, so a
// continuation always observes its batch fully resolved and never runs more
// than once.
type Env struct {
	mu    sync.Mutex
	self  types.AccountID
	state hostState

	invoking bool
	current  airdrop.Call
	queue    []pendingBatch
}

// NewEnv creates an environment for the contract account named self.
func NewEnv(self types.AccountID, state hostState) *Env {
	return &Env{self: self, state: state}
}

// Self returns the contract's own account name.
func (env *Env) Self() types.AccountID { return env.self }

// Submit queues a batch with no completion signal.
func (env *Env) Submit(batch *airdrop.Batch) error {
	return env.enqueue(batch, nil)
}

// Then queues a batch and registers a continuation to run once it resolves.
func (env *Env) Then(batch *airdrop.Batch, cont airdrop.Continuation) error {
	return env.enqueue(batch, &cont)
}

func (env *Env) enqueue(batch *airdrop.Batch, cont *airdrop.Continuation) error {
	if batch == nil {
		return errors.New("host: nil batch")
	}
	env.queue = append(env.queue, pendingBatch{
		batch:  batch,
		cont:   cont,
		signer: env.current.SignerKey,
	})
	return nil
}

// InitAccount writes a fresh account with the given balance. Used at genesis
// and by tests; fails if the name is taken.
func (env *Env) InitAccount(id types.AccountID, balance *big.Int) error {
	if env.state == nil {
		return errNilState
	}
	if _, ok, err := env.state.AccountGet(id); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	amount := big.NewInt(0)
	if balance != nil {
		amount = new(big.Int).Set(balance)
	}
	return env.state.AccountPut(id, &types.Account{Balance: amount})
}

// BalanceOf returns the spendable balance of a named account.
func (env *Env) BalanceOf(id types.AccountID) (*big.Int, error) {
	if env.state == nil {
		return nil, errNilState
	}
	account, ok, err := env.state.AccountGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountMissing, id)
	}
	return new(big.Int).Set(account.Balance), nil
}

// HasAccount reports whether a named account exists.
func (env *Env) HasAccount(id types.AccountID) (bool, error) {
	if env.state == nil {
		return false, errNilState
	}
	_, ok, err := env.state.AccountGet(id)
	return ok, err
}

// AccessKeyPermits reports whether the key is attached to the contract
// account and its allow-list admits the named entry point. The RPC layer uses
// this to gate capability-scoped calls.
func (env *Env) AccessKeyPermits(key crypto.PublicKey, method string) (bool, error) {
	if env.state == nil {
		return false, errNilState
	}
	record, ok, err := env.state.AccessKeyGet(env.self, key)
	if err != nil || !ok {
		return false, err
	}
	return record.PermitsCall(env.self, method), nil
}

// HasAccessKey reports whether the key is attached to the contract account.
func (env *Env) HasAccessKey(key crypto.PublicKey) (bool, error) {
	if env.state == nil {
		return false, errNilState
	}
	_, ok, err := env.state.AccessKeyGet(env.self, key)
	return ok, err
}

// Invoke runs one entry function under the host's execution model: the
// attached deposit moves from the caller to the contract first, the entry
// runs to completion, then every queued batch resolves in order with its
// continuation. An entry error aborts the whole call: the deposit returns to
// the caller and nothing dispatched by the failed entry executes.
func (env *Env) Invoke(call airdrop.Call, entry func() error) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.invoking {
		return errors.New("host: reentrant invocation")
	}
	env.invoking = true
	env.current = call
	env.queue = nil
	defer func() {
		env.invoking = false
		env.current = airdrop.Call{}
		env.queue = nil
	}()

	deposit := big.NewInt(0)
	if call.Deposit != nil {
		deposit = new(big.Int).Set(call.Deposit)
	}
	if deposit.Sign() > 0 {
		if err := env.move(call.Caller, env.self, deposit); err != nil {
			return err
		}
	}
	if err := entry(); err != nil {
		if deposit.Sign() > 0 {
			if refundErr := env.move(env.self, call.Caller, deposit); refundErr != nil {
				return errors.Join(err, refundErr)
			}
		}
		return err
	}
	return env.resolve()
}

// resolve drains the batch queue. Continuations may queue further batches
// (the finalising key revocation, the compensating refund); those resolve in
// the same pass.
func (env *Env) resolve() error {
	for len(env.queue) > 0 {
		next := env.queue[0]
		env.queue = env.queue[1:]
		result := airdrop.Result{Success: env.apply(next.batch) == nil}
		if next.cont == nil {
			continue
		}
		env.current = airdrop.Call{Caller: env.self, SignerKey: next.signer, Deposit: big.NewInt(0)}
		if err := next.cont.Run(env.current, []airdrop.Result{result}); err != nil {
			return err
		}
	}
	return nil
}

// apply executes one batch all-or-nothing: every action runs against staged
// copies and nothing is written unless all of them succeed.
func (env *Env) apply(batch *airdrop.Batch) error {
	if env.state == nil {
		return errNilState
	}
	receiver, receiverExists, err := env.state.AccountGet(batch.Receiver)
	if err != nil {
		return err
	}
	receiver = receiver.Clone()
	self, selfExists, err := env.state.AccountGet(env.self)
	if err != nil {
		return err
	}
	if !selfExists {
		return fmt.Errorf("%w: %s", ErrAccountMissing, env.self)
	}
	self = self.Clone()

	created := false
	keyPuts := make([]*types.AccessKey, 0)
	keyDeletes := make([]crypto.PublicKey, 0)

	for _, action := range batch.Actions {
		switch a := action.(type) {
		case airdrop.CreateAccountAction:
			if receiverExists {
				return fmt.Errorf("%w: %s", ErrAccountExists, batch.Receiver)
			}
			if !batch.Receiver.Valid() {
				return types.ErrInvalidAccountID
			}
			receiver = &types.Account{Balance: big.NewInt(0)}
			receiverExists = true
			created = true
		case airdrop.TransferAction:
			amount := big.NewInt(0)
			if a.Amount != nil {
				amount = new(big.Int).Set(a.Amount)
			}
			if !receiverExists {
				return fmt.Errorf("%w: %s", ErrAccountMissing, batch.Receiver)
			}
			if batch.Receiver == env.self {
				continue
			}
			if self.Balance.Cmp(amount) < 0 {
				return fmt.Errorf("%w: need %s", ErrInsufficientBalance, amount)
			}
			self.Balance.Sub(self.Balance, amount)
			receiver.Balance.Add(receiver.Balance, amount)
		case airdrop.AddFullAccessKeyAction:
			if !receiverExists {
				return fmt.Errorf("%w: %s", ErrAccountMissing, batch.Receiver)
			}
			keyPuts = append(keyPuts, &types.AccessKey{PublicKey: a.Key, FullAccess: true})
		case airdrop.AddAccessKeyAction:
			if !receiverExists {
				return fmt.Errorf("%w: %s", ErrAccountMissing, batch.Receiver)
			}
			keyPuts = append(keyPuts, &types.AccessKey{
				PublicKey: a.Key,
				Allowance: a.Allowance,
				Receiver:  a.Receiver,
				Methods:   append([]string(nil), a.Methods...),
			})
		case airdrop.DeleteKeyAction:
			if !receiverExists {
				return fmt.Errorf("%w: %s", ErrAccountMissing, batch.Receiver)
			}
			keyDeletes = append(keyDeletes, a.Key)
		case airdrop.DeployContractAction:
			if !receiverExists {
				return fmt.Errorf("%w: %s", ErrAccountMissing, batch.Receiver)
			}
			hash := ethcrypto.Keccak256(a.Code)
			receiver.CodeHash = hash
		default:
			return fmt.Errorf("host: unsupported action %T", action)
		}
	}

	if batch.Receiver == env.self {
		receiver = self
	} else {
		if err := env.state.AccountPut(env.self, self); err != nil {
			return err
		}
	}
	if receiverExists || created {
		if err := env.state.AccountPut(batch.Receiver, receiver); err != nil {
			return err
		}
	}
	for _, record := range keyPuts {
		if err := env.state.AccessKeyPut(batch.Receiver, record); err != nil {
			return err
		}
	}
	for _, key := range keyDeletes {
		if err := env.state.AccessKeyDelete(batch.Receiver, key); err != nil {
			return err
		}
	}
	return nil
}

func (env *Env) move(from, to types.AccountID, amount *big.Int) error {
	fromAcc, ok, err := env.state.AccountGet(from)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountMissing, from)
	}
	toAcc, ok, err := env.state.AccountGet(to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountMissing, to)
	}
	fromAcc = fromAcc.Clone()
	toAcc = toAcc.Clone()
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, fromAcc.Balance, amount)
	}
	fromAcc.Balance.Sub(fromAcc.Balance, amount)
	toAcc.Balance.Add(toAcc.Balance, amount)
	if err := env.state.AccountPut(from, fromAcc); err != nil {
		return err
	}
	return env.state.AccountPut(to, toAcc)
}
