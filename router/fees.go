// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// ============================================================================
// Surplus recognition
// ============================================================================

// recognizedSurplus computes the price improvement subject to fee policy.
// Exact-input improves on the received side (realized > quoted), exact-output
// on the spent side (realized < quoted). Improvements of SurplusEpsilon units
// or less are rounding noise, not surplus. With the cap flag the surplus is
// clamped to 1% of the quoted amount.
func recognizedSurplus(quoted, realized *uint256.Int, exactOut, capped bool) *uint256.Int {
	surplus := new(uint256.Int)
	if exactOut {
		if quoted.Gt(realized) {
			surplus.Sub(quoted, realized)
		}
	} else {
		if realized.Gt(quoted) {
			surplus.Sub(realized, quoted)
		}
	}
	if !surplus.GtUint64(SurplusEpsilon) {
		return new(uint256.Int)
	}
	if capped {
		cap := new(uint256.Int).Div(quoted, uint256.NewInt(100))
		if surplus.Gt(cap) {
			surplus.Set(cap)
		}
	}
	return surplus
}

// feeBase is the amount a fixed fee percentage applies to:
// min(realized, quoted+surplus) for exact input, and symmetrically
// min(realized, quoted-surplus) for exact output.
func feeBase(quoted, realized, surplus *uint256.Int, exactOut bool) *uint256.Int {
	bound := new(uint256.Int)
	if exactOut {
		bound.Sub(quoted, surplus)
	} else {
		bound.Add(quoted, surplus)
	}
	if realized.Lt(bound) {
		return realized.Clone()
	}
	return bound
}

func bpsShare(amount *uint256.Int, bps uint64) *uint256.Int {
	share := new(uint256.Int).Mul(amount, uint256.NewInt(bps))
	return share.Div(share, uint256.NewInt(BpsDenominator))
}

// ============================================================================
// Distribution
// ============================================================================

// feeSplit is the computed outcome of one distribution: the two fee shares,
// whether the protocol share bypasses the vault regardless of the descriptor,
// and whether the beneficiary transfer retains the 1-unit dust.
type feeSplit struct {
	Partner        *uint256.Int
	Protocol       *uint256.Int
	ProtocolDirect bool
	RetainDust     bool
}

// computeFeeSplit applies the mutually exclusive fee policies in priority
// order. blacklisted reports whether fee-taking on the asset is disallowed
// (already accounting for the skip flag).
func computeFeeSplit(policy FeePolicy, quoted, realized, surplus *uint256.Int, blacklisted, exactOut bool) *feeSplit {
	split := &feeSplit{
		Partner:    new(uint256.Int),
		Protocol:   new(uint256.Int),
		RetainDust: true,
	}

	if !policy.HasPartner() || blacklisted {
		// Whole surplus to the protocol, no percentage fee. The direct
		// path hands the full remainder over without keeping dust.
		split.Protocol.Set(surplus)
		split.RetainDust = !policy.DirectTransfer
		return split
	}

	if bps := policy.clampedFeeBps(); bps > 0 {
		fee := bpsShare(feeBase(quoted, realized, surplus, exactOut), uint64(bps))
		split.Partner = bpsShare(fee, FeeSplitPartnerBps)
		split.Protocol.Sub(fee, split.Partner)
		return split
	}

	if surplus.IsZero() {
		return split
	}

	if policy.Referral {
		// 50% protocol, 25% partner; the last 25% stays in the remainder.
		split.Protocol.Div(surplus, uint256.NewInt(2))
		split.Partner.Div(surplus, uint256.NewInt(4))
		return split
	}

	if policy.TakeSurplus {
		half := new(uint256.Int).Div(surplus, uint256.NewInt(2))
		split.Protocol.Set(half)
		split.Partner.Sub(surplus, half)
		if policy.UserSurplus {
			// Partner's half goes back to the user; the protocol half
			// must leave immediately rather than sit in the vault.
			split.Partner.Clear()
			split.ProtocolDirect = true
		}
		return split
	}

	return split
}

// distributeFees runs the fee engine over one settled leg and pays everyone
// out. asset is the asset fees are denominated in (the destination for exact
// input, the source for exact output), available is the engine-held amount to
// distribute (realized output, or unspent input). Returns the two fee shares.
//
// Insufficient balance for the computed fees aborts the whole settlement;
// the venue leg has already executed, so the environment's atomicity is what
// discards it.
func (r *Router) distributeFees(stateDB StateDB, asset Asset, beneficiary common.Address, quoted, realized, available *uint256.Int, policy FeePolicy, exactOut bool) (partnerFee, protocolFee *uint256.Int, err error) {
	surplus := recognizedSurplus(quoted, realized, exactOut, policy.CapSurplus)
	blacklisted := !policy.SkipBlacklist && r.inBlacklist(asset.Address)
	split := computeFeeSplit(policy, quoted, realized, surplus, blacklisted, exactOut)

	totalFee := new(uint256.Int).Add(split.Partner, split.Protocol)
	if available.Lt(totalFee) {
		return nil, nil, ErrInsufficientFunds
	}

	if err := r.disburse(stateDB, asset, policy, split); err != nil {
		return nil, nil, err
	}

	remainder := new(uint256.Int).Sub(available, totalFee)
	if split.RetainDust {
		if !remainder.GtUint64(Dust) {
			remainder.Clear()
		} else {
			remainder.SubUint64(remainder, Dust)
		}
	}
	if !remainder.IsZero() {
		if err := r.payOut(stateDB, asset, beneficiary, remainder); err != nil {
			return nil, nil, err
		}
	}

	r.log.Debug("fees distributed",
		"asset", asset.Address.Hex(),
		"surplus", surplus.String(),
		"partner", split.Partner.String(),
		"protocol", split.Protocol.String(),
		"beneficiary", remainder.String(),
	)
	return split.Partner, split.Protocol, nil
}

// disburse moves the two fee shares either by immediate transfer or by
// recording claimable balances in the fee vault. The mode is chosen once per
// call; the only exception is the forced direct protocol payout of the
// user-surplus policy.
func (r *Router) disburse(stateDB StateDB, asset Asset, policy FeePolicy, split *feeSplit) error {
	if policy.DirectTransfer {
		if !split.Partner.IsZero() {
			if err := r.payOut(stateDB, asset, policy.Partner, split.Partner); err != nil {
				return err
			}
		}
		if !split.Protocol.IsZero() {
			if err := r.payOut(stateDB, asset, r.protocolWallet, split.Protocol); err != nil {
				return err
			}
		}
		return nil
	}

	if split.ProtocolDirect && !split.Protocol.IsZero() {
		if err := r.payOut(stateDB, asset, r.protocolWallet, split.Protocol); err != nil {
			return err
		}
		split = &feeSplit{Partner: split.Partner, Protocol: new(uint256.Int)}
	}

	var (
		recipients []common.Address
		amounts    []*uint256.Int
	)
	if !split.Partner.IsZero() {
		recipients = append(recipients, policy.Partner)
		amounts = append(amounts, split.Partner)
	}
	if !split.Protocol.IsZero() {
		recipients = append(recipients, r.protocolWallet)
		amounts = append(amounts, split.Protocol)
	}
	switch len(recipients) {
	case 0:
		return nil
	case 1:
		return r.feeVault.Deposit(stateDB, asset.Address, recipients[0], amounts[0])
	default:
		return r.feeVault.BatchDeposit(stateDB, asset.Address, recipients, amounts)
	}
}
