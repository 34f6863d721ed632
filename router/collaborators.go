// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// StateDB is the engine's view of account state. Native balances and the
// engine's own storage (pause flag, admin) live here.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)
}

// Token is the external fungible token resource. All calls are fatal on
// error; the engine never retries a token operation.
type Token interface {
	BalanceOf(owner common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error
	Approve(owner, spender common.Address, amount *uint256.Int) error

	// Permit is the allowance-style one-time authorization (owner, spender,
	// value, deadline plus a secp256k1 signature).
	Permit(owner, spender common.Address, value *uint256.Int, deadline uint64, v byte, r, s common.Hash) error

	// PermitLegacy is the two-nonce authorization form (holder, spender,
	// nonce, expiry, allowed flag plus a secp256k1 signature).
	PermitLegacy(holder, spender common.Address, nonce, expiry uint64, allowed bool, v byte, r, s common.Hash) error
}

// TokenRegistry resolves an asset identifier to its token resource.
type TokenRegistry interface {
	Token(asset common.Address) (Token, error)
}

// WrappedNative is the fungible wrapper around the native asset, for venues
// that cannot settle native value.
type WrappedNative interface {
	Token
	Address() common.Address
	Deposit(to common.Address, amount *uint256.Int) error
	Withdraw(from common.Address, amount *uint256.Int) error
}

// SignatureTransfer is the delegated authorize-and-transfer protocol used for
// authorization payloads of 257 bytes or more: a single call both validates
// the owner's signed authorization and performs the pull.
type SignatureTransfer interface {
	PermitTransferFrom(owner, to common.Address, asset common.Address, amount *uint256.Int, payload []byte) error
}

// PairPool is a constant-product liquidity pool. Swap pushes the requested
// output amounts to the recipient and validates the invariant internally;
// the input must already sit on the pool's balance when Swap is called.
type PairPool interface {
	Tokens() (token0, token1 common.Address)
	GetReserves() (reserve0, reserve1 *uint256.Int)
	Swap(amount0Out, amount1Out *uint256.Int, to common.Address) error
}

// CLPool is a concentrated-liquidity pool. Swap computes the trade and then
// synchronously calls PayCallback on the engine with the signed deltas it
// expects before completing. amountSpecified is positive for exact input and
// negative for exact output. priceLimit bounds the post-swap price; nil means
// unbounded. Positive returned deltas are owed to the pool.
type CLPool interface {
	Swap(recipient common.Address, zeroForOne bool, amountSpecified *big.Int, priceLimit *uint256.Int, data []byte) (amount0, amount1 *big.Int, err error)
}

// Settler is an arbitrary external settlement routine. The engine validates
// the resulting balance itself and never trusts the routine's outcome.
type Settler interface {
	Execute(payload []byte, fromAmount, toAmount *uint256.Int, initiator common.Address) error
}

// FeeVault records per-recipient claimable fee balances for later withdrawal,
// as the alternative to immediate direct transfer.
type FeeVault interface {
	Deposit(stateDB StateDB, asset common.Address, recipient common.Address, amount *uint256.Int) error
	BatchDeposit(stateDB StateDB, asset common.Address, recipients []common.Address, amounts []*uint256.Int) error
}

// VenueHost binds venue addresses to live pool objects.
type VenueHost interface {
	Pair(addr common.Address) (PairPool, error)
	CL(addr common.Address) (CLPool, error)
	Settler(addr common.Address) (Settler, error)
}

// CallbackHandler is implemented by the engine; CL pools invoke it
// mid-operation to collect the tokens they are owed.
type CallbackHandler interface {
	PayCallback(caller common.Address, amount0Delta, amount1Delta *big.Int, data []byte) error
}
