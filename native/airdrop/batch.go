package airdrop

import (
	"math/big"

	"keydrop/core/types"
	"keydrop/crypto"
)

// Action is one step of a composite remote operation. The host executes every
// action of a batch in order, all-or-nothing.
type Action interface {
	isAction()
}

// CreateAccountAction provisions the batch receiver as a new account.
type CreateAccountAction struct{}

// TransferAction moves value from the contract account to the batch receiver.
type TransferAction struct {
	Amount *big.Int
}

// AddFullAccessKeyAction attaches an unrestricted key to the batch receiver.
type AddFullAccessKeyAction struct {
	Key crypto.PublicKey
}

// AddAccessKeyAction attaches a function-call key limited to an allowance, a
// receiver and a method allow-list. Granting an already present key replaces
// the previous record.
type AddAccessKeyAction struct {
	Key       crypto.PublicKey
	Allowance *big.Int
	Receiver  types.AccountID
	Methods   []string
}

// DeleteKeyAction revokes the named key from the batch receiver.
type DeleteKeyAction struct {
	Key crypto.PublicKey
}

// DeployContractAction installs executable code on the batch receiver.
type DeployContractAction struct {
	Code []byte
}

func (CreateAccountAction) isAction()    {}
func (TransferAction) isAction()         {}
func (AddFullAccessKeyAction) isAction() {}
func (AddAccessKeyAction) isAction()     {}
func (DeleteKeyAction) isAction()        {}
func (DeployContractAction) isAction()   {}

// Batch is a composite remote operation addressed to a single receiver.
type Batch struct {
	Receiver types.AccountID
	Actions  []Action
}

// Result is the resolved outcome of one dispatched batch.
type Result struct {
	Success bool
}

// Continuation runs after the batch it was attached to has fully resolved.
// The host invokes it at most once and supplies the resolved results of
// exactly the batches it was chained onto.
type Continuation struct {
	GasBudget uint64
	Run       func(call Call, results []Result) error
}

// Runtime is the engine's view of the host execution environment. Submit
// dispatches a batch with no completion signal; Then additionally registers a
// continuation to run once the batch resolves.
type Runtime interface {
	Self() types.AccountID
	Submit(batch *Batch) error
	Then(batch *Batch, cont Continuation) error
}
