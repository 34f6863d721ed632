// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package router implements a multi-venue token swap settlement engine.
// A swap request is routed through one or more liquidity venues of differing
// call conventions; the engine secures the input tokens, executes the venue
// leg, measures the realized balance delta and distributes any price surplus
// between the protocol and an optional partner.
package router

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Engine address. Venue legs settle token balances against this account.
var RouterAddress = common.HexToAddress("0x0000000000000000000000000000000000009112")

// Fee parameters. FeeBps values above MaxFeeBps are clamped, never rejected.
const (
	// BpsDenominator is the basis-point scale used by every percentage here.
	BpsDenominator = 10000

	// MaxFeeBps caps the configurable partner fee at 2%.
	MaxFeeBps = 200

	// FeeSplitPartnerBps is the partner's share of a fixed fee (85/15 split).
	FeeSplitPartnerBps = 8500

	// SurplusEpsilon is the minimum positive difference between realized and
	// quoted amounts for a surplus to be recognized at all. Differences at or
	// below this are rounding noise and stay with the beneficiary.
	SurplusEpsilon = 11

	// Dust is the residual balance the engine retains after a payout so the
	// next swap touching the same asset starts from a warm, nonzero slot.
	Dust = 1

	// PairFeeBps is the constant-product venue's fixed trade fee (0.30%).
	PairFeeBps = 30
)

// Asset identifies a settleable asset. The zero address is the native asset.
type Asset struct {
	Address common.Address
}

// NativeAsset is the chain's native asset (no token contract).
var NativeAsset = Asset{Address: common.Address{}}

// IsNative returns true if this asset is the native asset.
func (a Asset) IsNative() bool {
	return a.Address == common.Address{}
}

// SwapRequest is a caller-supplied settlement request. For exact-input swaps
// FromAmount is exact and ToAmount is the minimum acceptable output; for
// exact-output swaps ToAmount is exact and FromAmount is the maximum spend.
// ExpectedAmount is the pre-trade quote the surplus computation is measured
// against: expected output for exact-input, expected spend for exact-output.
type SwapRequest struct {
	SrcAsset       Asset
	DestAsset      Asset
	FromAmount     *uint256.Int
	ToAmount       *uint256.Int
	ExpectedAmount *uint256.Int
	Beneficiary    common.Address
}

// validate checks the request invariants shared by every entrypoint.
func (r *SwapRequest) validate(exactOut bool) error {
	if r.ToAmount == nil || r.ToAmount.IsZero() {
		return ErrZeroToAmount
	}
	if r.FromAmount == nil || r.FromAmount.IsZero() {
		return ErrZeroFromAmount
	}
	if exactOut && r.SrcAsset == r.DestAsset {
		return ErrSameAsset
	}
	return nil
}

// receiver returns the beneficiary, defaulting to the initiating caller.
func (r *SwapRequest) receiver(caller common.Address) common.Address {
	if r.Beneficiary == (common.Address{}) {
		return caller
	}
	return r.Beneficiary
}

// PairHop is one step through a constant-product pool chain. Pool may be the
// zero address, in which case the engine derives it from the token pair via
// the resolver. Direction selects which of the pool's two reserves is input.
type PairHop struct {
	Pool     common.Address
	TokenIn  common.Address
	TokenOut common.Address
}

// PairKey identifies a concentrated-liquidity pool by its sorted token pair
// and fee tier. Token0 must sort below Token1.
type PairKey struct {
	Token0 common.Address
	Token1 common.Address
	Fee    uint32
}

// CLHop is one step through a concentrated-liquidity pool chain.
type CLHop struct {
	Key        PairKey
	ZeroForOne bool
}

// In returns the hop's input token given its direction.
func (h CLHop) In() common.Address {
	if h.ZeroForOne {
		return h.Key.Token0
	}
	return h.Key.Token1
}

// Out returns the hop's output token given its direction.
func (h CLHop) Out() common.Address {
	if h.ZeroForOne {
		return h.Key.Token1
	}
	return h.Key.Token0
}

// SettlementResult is the realized outcome of a swap. Produced once per swap
// and never mutated after return.
type SettlementResult struct {
	Spent       *uint256.Int
	Received    *uint256.Int
	ProtocolFee *uint256.Int
	PartnerFee  *uint256.Int
}

// Errors - request validation
var (
	ErrZeroToAmount   = errors.New("to amount must not be zero")
	ErrZeroFromAmount = errors.New("from amount must not be zero")
	ErrSameAsset      = errors.New("source and destination asset must differ")
	ErrEmptyPath      = errors.New("path must contain at least one hop")
	ErrDestMismatch   = errors.New("path output does not match destination asset")
	ErrNoOrders       = errors.New("order batch is empty")
)

// Errors - settlement
var (
	ErrReturnAmount      = errors.New("received amount below requested minimum")
	ErrMaxInput          = errors.New("required input above requested maximum")
	ErrQuotedTooHigh     = errors.New("quoted amount above maximum input")
	ErrInsufficientLiq   = errors.New("insufficient pool liquidity")
	ErrInsufficientFunds = errors.New("insufficient balance to cover fees")
	ErrUntrustedCallback = errors.New("callback caller is not the expected pool")
	ErrNoActiveCallback  = errors.New("no settlement callback in flight")
	ErrIncorrectValue    = errors.New("attached value does not match declared amount")
)

// Errors - authorization
var (
	ErrPermitLength = errors.New("authorization payload has disallowed length")
	ErrPermitFailed = errors.New("authorization call failed")
	ErrPaused       = errors.New("engine is paused")
	ErrUnauthorized = errors.New("unauthorized")
)

// Errors - collaborators
var (
	ErrUnknownToken = errors.New("unknown token")
	ErrUnknownPool  = errors.New("unknown pool")
)
