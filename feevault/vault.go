// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package feevault keeps per-recipient claimable fee balances in contract
// storage. Fees disbursed through the vault stay in the engine's custody
// until the recipient withdraws them.
package feevault

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/router/router"
)

var (
	ErrClaimExceeded  = errors.New("feevault: withdrawal exceeds claimable balance")
	ErrLengthMismatch = errors.New("feevault: recipients and amounts differ in length")
)

// Payer moves custodied funds out when a claim is withdrawn.
type Payer interface {
	Pay(stateDB router.StateDB, asset, to common.Address, amount *uint256.Int) error
}

var claimPrefix = []byte("fclm")

func claimSlot(asset, recipient common.Address) common.Hash {
	h := blake3.New()
	h.Write(claimPrefix)
	h.Write(asset.Bytes())
	h.Write(recipient.Bytes())
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Vault is the claim ledger. contract is the storage home of the ledger
// slots; the payer releases custody on withdrawal.
type Vault struct {
	contract common.Address
	payer    Payer
}

func New(contract common.Address, payer Payer) *Vault {
	return &Vault{contract: contract, payer: payer}
}

// Claimable returns the recipient's accumulated balance for the asset.
func (v *Vault) Claimable(stateDB router.StateDB, asset, recipient common.Address) *uint256.Int {
	raw := stateDB.GetState(v.contract, claimSlot(asset, recipient))
	return new(uint256.Int).SetBytes(raw[:])
}

// Deposit credits a fee share to the recipient's claimable balance.
func (v *Vault) Deposit(stateDB router.StateDB, asset common.Address, recipient common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	total := v.Claimable(stateDB, asset, recipient)
	total.Add(total, amount)
	stateDB.SetState(v.contract, claimSlot(asset, recipient), total.Bytes32())
	return nil
}

// BatchDeposit credits several recipients in one call.
func (v *Vault) BatchDeposit(stateDB router.StateDB, asset common.Address, recipients []common.Address, amounts []*uint256.Int) error {
	if len(recipients) != len(amounts) {
		return ErrLengthMismatch
	}
	for i, recipient := range recipients {
		if err := v.Deposit(stateDB, asset, recipient, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

// Withdraw releases part of the caller's claimable balance to a destination
// address. Claims above the recorded balance fail.
func (v *Vault) Withdraw(stateDB router.StateDB, asset, caller, to common.Address, amount *uint256.Int) error {
	claimable := v.Claimable(stateDB, asset, caller)
	if claimable.Lt(amount) {
		return ErrClaimExceeded
	}
	claimable.Sub(claimable, amount)
	stateDB.SetState(v.contract, claimSlot(asset, caller), claimable.Bytes32())
	return v.payer.Pay(stateDB, asset, to, amount)
}
