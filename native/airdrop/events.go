package airdrop

import (
	"math/big"

	"keydrop/core/types"
	"keydrop/crypto"
)

const (
	EventTypeSponsored        = "airdrop.sponsored"
	EventTypeClaimed          = "airdrop.claimed"
	EventTypeClaimFinalized   = "airdrop.claim_finalized"
	EventTypeClaimCompensated = "airdrop.claim_compensated"
	EventTypeAccountCreated   = "airdrop.account_created"
	EventTypeAccountRefunded  = "airdrop.account_refunded"
)

// NewSponsoredEvent returns the payload emitted when a deposit is escrowed
// under a redemption key.
func NewSponsoredEvent(key crypto.PublicKey, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSponsored,
		Attributes: map[string]string{
			"key":    key.String(),
			"amount": formatAmount(amount),
		},
	}
}

// NewClaimedEvent returns the payload emitted when an escrow is drained to an
// existing account.
func NewClaimedEvent(key crypto.PublicKey, destination types.AccountID, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"key":         key.String(),
			"destination": destination.String(),
			"amount":      formatAmount(amount),
		},
	}
}

// NewClaimFinalizedEvent returns the payload emitted when an account-creation
// claim settles successfully and the redemption key is revoked.
func NewClaimFinalizedEvent(key crypto.PublicKey, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeClaimFinalized,
		Attributes: map[string]string{
			"key":    key.String(),
			"amount": formatAmount(amount),
		},
	}
}

// NewClaimCompensatedEvent returns the payload emitted when a failed
// account-creation claim restores the escrow entry.
func NewClaimCompensatedEvent(key crypto.PublicKey, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeClaimCompensated,
		Attributes: map[string]string{
			"key":    key.String(),
			"amount": formatAmount(amount),
		},
	}
}

// NewAccountCreatedEvent returns the payload emitted when a deposit-funded
// account creation settles successfully.
func NewAccountCreatedEvent(funder types.AccountID, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeAccountCreated,
		Attributes: map[string]string{
			"funder": funder.String(),
			"amount": formatAmount(amount),
		},
	}
}

// NewAccountRefundedEvent returns the payload emitted when a failed
// deposit-funded creation refunds the original caller.
func NewAccountRefundedEvent(funder types.AccountID, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeAccountRefunded,
		Attributes: map[string]string{
			"funder": funder.String(),
			"amount": formatAmount(amount),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
