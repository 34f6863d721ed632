// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// quotedAmount returns the baseline the surplus computation measures against,
// defaulting to the caller's bound when no explicit quote was supplied.
func quotedAmount(req *SwapRequest, exactOut bool) *uint256.Int {
	if req.ExpectedAmount != nil && !req.ExpectedAmount.IsZero() {
		return req.ExpectedAmount
	}
	if exactOut {
		return req.FromAmount
	}
	return req.ToAmount
}

// venueAsset maps an asset to the form venues settle in: the wrapped token
// stands in for the native asset.
func (r *Router) venueAsset(a Asset) common.Address {
	if a.IsNative() {
		return r.wnative.Address()
	}
	return a.Address
}

// checkPathOutput rejects a path whose final token is not the venue form of
// the declared destination. The received amount is measured and paid out in
// the destination asset, so a mismatched path would settle the payout from
// custody the engine holds for others while the venue output strands.
func (r *Router) checkPathOutput(dest Asset, lastOut common.Address) error {
	if lastOut != r.venueAsset(dest) {
		return ErrDestMismatch
	}
	return nil
}

// checkNoValue rejects native value attached to a token-denominated input.
func checkNoValue(value *uint256.Int) error {
	if value != nil && !value.IsZero() {
		return ErrIncorrectValue
	}
	return nil
}

// secureInput brings the input under engine control at the given destination:
// native value is verified against the declared amount and wrapped, token
// input is pulled from the caller under the authorization payload.
func (r *Router) secureInput(stateDB StateDB, caller common.Address, src Asset, amount, value *uint256.Int, permit []byte, to common.Address) error {
	if src.IsNative() {
		if err := checkAttachedValue(amount, value); err != nil {
			return err
		}
		if err := r.wrapNative(stateDB, amount); err != nil {
			return err
		}
		if to == RouterAddress {
			return nil
		}
		return r.wnative.Transfer(RouterAddress, to, amount)
	}
	if err := checkNoValue(value); err != nil {
		return err
	}
	return r.transferTokensFrom(src.Address, caller, to, amount, permit)
}

// settleOutput converts a wrapper-denominated venue output back to native
// when the destination asset is native. The amount stays on the engine; the
// fee engine performs the final payout.
func (r *Router) settleOutput(stateDB StateDB, dest Asset, amount *uint256.Int) error {
	if dest.IsNative() && !amount.IsZero() {
		return r.unwrapNative(stateDB, amount)
	}
	return nil
}

// ============================================================================
// Constant-product entrypoints
// ============================================================================

// SwapOnPairs sells an exact input along a chain of constant-product pools.
// ToAmount is the minimum acceptable output.
func (r *Router) SwapOnPairs(stateDB StateDB, caller common.Address, value *uint256.Int, req *SwapRequest, feeWord *uint256.Int, permit []byte, factory common.Address, path []PairHop) (*SettlementResult, error) {
	if err := r.checkNotPaused(stateDB); err != nil {
		return nil, err
	}
	if err := req.validate(false); err != nil {
		return nil, err
	}
	policy := ParseFeePolicy(feeWord)
	beneficiary := req.receiver(caller)

	hops, err := r.resolvePairPath(factory, path)
	if err != nil {
		return nil, err
	}
	if err := r.checkPathOutput(req.DestAsset, hops[len(hops)-1].tokenOut); err != nil {
		return nil, err
	}

	// Input goes straight to the first pool; the chain forwards pool to
	// pool and only the final output touches the engine.
	if err := r.secureInput(stateDB, caller, req.SrcAsset, req.FromAmount, value, permit, hops[0].addr); err != nil {
		return nil, err
	}

	outAsset := Asset{Address: hops[len(hops)-1].tokenOut}
	before, err := r.balanceOf(stateDB, outAsset, RouterAddress)
	if err != nil {
		return nil, err
	}
	if _, err := r.swapPairChain(hops, req.FromAmount); err != nil {
		return nil, err
	}
	after, err := r.balanceOf(stateDB, outAsset, RouterAddress)
	if err != nil {
		return nil, err
	}
	received := new(uint256.Int).Sub(after, before)

	if received.Lt(req.ToAmount) {
		return nil, ErrReturnAmount
	}
	if err := r.settleOutput(stateDB, req.DestAsset, received); err != nil {
		return nil, err
	}

	partnerFee, protocolFee, err := r.distributeFees(stateDB, req.DestAsset, beneficiary,
		quotedAmount(req, false), received, received, policy, false)
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		Spent:       req.FromAmount.Clone(),
		Received:    received,
		PartnerFee:  partnerFee,
		ProtocolFee: protocolFee,
	}, nil
}

// BuyOnPairs buys an exact output along a chain of constant-product pools.
// FromAmount caps the input; the unspent remainder is refunded through the
// fee engine.
func (r *Router) BuyOnPairs(stateDB StateDB, caller common.Address, value *uint256.Int, req *SwapRequest, feeWord *uint256.Int, permit []byte, factory common.Address, path []PairHop) (*SettlementResult, error) {
	if err := r.checkNotPaused(stateDB); err != nil {
		return nil, err
	}
	if err := req.validate(true); err != nil {
		return nil, err
	}
	policy := ParseFeePolicy(feeWord)
	beneficiary := req.receiver(caller)
	quoted := quotedAmount(req, true)
	if quoted.Gt(req.FromAmount) {
		return nil, ErrQuotedTooHigh
	}

	hops, err := r.resolvePairPath(factory, path)
	if err != nil {
		return nil, err
	}
	if err := r.checkPathOutput(req.DestAsset, hops[len(hops)-1].tokenOut); err != nil {
		return nil, err
	}
	amounts, err := r.planPairChainExactOut(hops, req.ToAmount)
	if err != nil {
		return nil, err
	}
	spent := amounts[0]
	if req.FromAmount.Lt(spent) {
		return nil, ErrMaxInput
	}

	// The full cap is pulled onto the engine; only the planned input is
	// forwarded to the first pool, the remainder refunds after the chain.
	if err := r.secureInput(stateDB, caller, req.SrcAsset, req.FromAmount, value, permit, RouterAddress); err != nil {
		return nil, err
	}
	inToken, err := r.tokens.Token(r.venueAsset(req.SrcAsset))
	if err != nil {
		return nil, err
	}
	if err := inToken.Transfer(RouterAddress, hops[0].addr, spent); err != nil {
		return nil, err
	}

	if err := r.buyPairChain(hops, amounts); err != nil {
		return nil, err
	}
	received := amounts[len(amounts)-1]
	if err := r.settleOutput(stateDB, req.DestAsset, received); err != nil {
		return nil, err
	}
	if err := r.payOut(stateDB, req.DestAsset, beneficiary, received); err != nil {
		return nil, err
	}

	remaining := new(uint256.Int).Sub(req.FromAmount, spent)
	if req.SrcAsset.IsNative() && !remaining.IsZero() {
		if err := r.unwrapNative(stateDB, remaining); err != nil {
			return nil, err
		}
	}
	partnerFee, protocolFee, err := r.distributeFees(stateDB, req.SrcAsset, beneficiary,
		quoted, spent, remaining, policy, true)
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		Spent:       spent,
		Received:    received,
		PartnerFee:  partnerFee,
		ProtocolFee: protocolFee,
	}, nil
}

// ============================================================================
// Concentrated-liquidity entrypoints
// ============================================================================

// SwapOnConcentrated sells an exact input along a chain of concentrated
// pools. Token input is paid hop by hop from inside the settlement callback;
// native input is wrapped up front and paid from the engine.
func (r *Router) SwapOnConcentrated(stateDB StateDB, caller common.Address, value *uint256.Int, req *SwapRequest, feeWord *uint256.Int, permit []byte, factory common.Address, hops []CLHop) (*SettlementResult, error) {
	if err := r.checkNotPaused(stateDB); err != nil {
		return nil, err
	}
	if err := req.validate(false); err != nil {
		return nil, err
	}
	policy := ParseFeePolicy(feeWord)
	beneficiary := req.receiver(caller)
	if len(hops) == 0 {
		return nil, ErrEmptyPath
	}
	if err := r.checkPathOutput(req.DestAsset, hops[len(hops)-1].Out()); err != nil {
		return nil, err
	}

	payer := caller
	if req.SrcAsset.IsNative() {
		if err := checkAttachedValue(req.FromAmount, value); err != nil {
			return nil, err
		}
		if err := r.wrapNative(stateDB, req.FromAmount); err != nil {
			return nil, err
		}
		payer = RouterAddress
		permit = nil
	} else if err := checkNoValue(value); err != nil {
		return nil, err
	}

	outAsset := Asset{Address: hops[len(hops)-1].Out()}
	before, err := r.balanceOf(stateDB, outAsset, RouterAddress)
	if err != nil {
		return nil, err
	}
	if _, err := r.swapCLChain(payer, factory, hops, req.FromAmount, permit); err != nil {
		return nil, err
	}
	after, err := r.balanceOf(stateDB, outAsset, RouterAddress)
	if err != nil {
		return nil, err
	}
	received := new(uint256.Int).Sub(after, before)

	if received.Lt(req.ToAmount) {
		return nil, ErrReturnAmount
	}
	if err := r.settleOutput(stateDB, req.DestAsset, received); err != nil {
		return nil, err
	}

	partnerFee, protocolFee, err := r.distributeFees(stateDB, req.DestAsset, beneficiary,
		quotedAmount(req, false), received, received, policy, false)
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		Spent:       req.FromAmount.Clone(),
		Received:    received,
		PartnerFee:  partnerFee,
		ProtocolFee: protocolFee,
	}, nil
}

// BuyOnConcentrated buys an exact output along a chain of concentrated
// pools. Debts propagate backwards through the settlement callback; only the
// first hop touches the payer.
func (r *Router) BuyOnConcentrated(stateDB StateDB, caller common.Address, value *uint256.Int, req *SwapRequest, feeWord *uint256.Int, permit []byte, factory common.Address, hops []CLHop) (*SettlementResult, error) {
	if err := r.checkNotPaused(stateDB); err != nil {
		return nil, err
	}
	if err := req.validate(true); err != nil {
		return nil, err
	}
	policy := ParseFeePolicy(feeWord)
	beneficiary := req.receiver(caller)
	quoted := quotedAmount(req, true)
	if quoted.Gt(req.FromAmount) {
		return nil, ErrQuotedTooHigh
	}
	if len(hops) == 0 {
		return nil, ErrEmptyPath
	}
	if err := r.checkPathOutput(req.DestAsset, hops[len(hops)-1].Out()); err != nil {
		return nil, err
	}

	payer := caller
	if req.SrcAsset.IsNative() {
		if err := checkAttachedValue(req.FromAmount, value); err != nil {
			return nil, err
		}
		if err := r.wrapNative(stateDB, req.FromAmount); err != nil {
			return nil, err
		}
		payer = RouterAddress
		permit = nil
	} else if err := checkNoValue(value); err != nil {
		return nil, err
	}

	spent, received, err := r.buyCLChain(payer, factory, hops, req.ToAmount, req.FromAmount, permit)
	if err != nil {
		return nil, err
	}
	if err := r.settleOutput(stateDB, req.DestAsset, received); err != nil {
		return nil, err
	}
	if err := r.payOut(stateDB, req.DestAsset, beneficiary, received); err != nil {
		return nil, err
	}

	// Token input is pulled exactly as spent; only wrapped native leaves a
	// remainder on the engine to refund.
	remaining := new(uint256.Int)
	if req.SrcAsset.IsNative() {
		remaining.Sub(req.FromAmount, spent)
		if !remaining.IsZero() {
			if err := r.unwrapNative(stateDB, remaining); err != nil {
				return nil, err
			}
		}
	}
	partnerFee, protocolFee, err := r.distributeFees(stateDB, req.SrcAsset, beneficiary,
		quoted, spent, remaining, policy, true)
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		Spent:       spent,
		Received:    received,
		PartnerFee:  partnerFee,
		ProtocolFee: protocolFee,
	}, nil
}

// ============================================================================
// Generic settlement entrypoints
// ============================================================================

// SwapOnSettler delegates an exact-input trade to an external settlement
// routine. The routine's outcome is verified purely by the engine's own
// balance delta of the destination asset.
func (r *Router) SwapOnSettler(stateDB StateDB, caller common.Address, value *uint256.Int, req *SwapRequest, feeWord *uint256.Int, permit []byte, settler common.Address, payload []byte) (*SettlementResult, error) {
	if err := r.checkNotPaused(stateDB); err != nil {
		return nil, err
	}
	if err := req.validate(false); err != nil {
		return nil, err
	}
	policy := ParseFeePolicy(feeWord)
	beneficiary := req.receiver(caller)

	if err := r.secureInput(stateDB, caller, req.SrcAsset, req.FromAmount, value, permit, RouterAddress); err != nil {
		return nil, err
	}
	venueSrc := Asset{Address: r.venueAsset(req.SrcAsset)}
	if err := r.grantSettlerAllowance(venueSrc, settler, req.FromAmount); err != nil {
		return nil, err
	}

	venueDest := Asset{Address: r.venueAsset(req.DestAsset)}
	received, err := r.executeSettler(stateDB, settler, payload, req.FromAmount, req.ToAmount, venueDest, caller)
	if err != nil {
		return nil, err
	}
	if err := r.settleOutput(stateDB, req.DestAsset, received); err != nil {
		return nil, err
	}

	partnerFee, protocolFee, err := r.distributeFees(stateDB, req.DestAsset, beneficiary,
		quotedAmount(req, false), received, received, policy, false)
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		Spent:       req.FromAmount.Clone(),
		Received:    received,
		PartnerFee:  partnerFee,
		ProtocolFee: protocolFee,
	}, nil
}

// BuyOnSettler delegates an exact-output trade to an external settlement
// routine. Spent input is measured from the engine's source balance delta;
// the unspent remainder refunds through the fee engine.
func (r *Router) BuyOnSettler(stateDB StateDB, caller common.Address, value *uint256.Int, req *SwapRequest, feeWord *uint256.Int, permit []byte, settler common.Address, payload []byte) (*SettlementResult, error) {
	if err := r.checkNotPaused(stateDB); err != nil {
		return nil, err
	}
	if err := req.validate(true); err != nil {
		return nil, err
	}
	policy := ParseFeePolicy(feeWord)
	beneficiary := req.receiver(caller)
	quoted := quotedAmount(req, true)
	if quoted.Gt(req.FromAmount) {
		return nil, ErrQuotedTooHigh
	}

	if err := r.secureInput(stateDB, caller, req.SrcAsset, req.FromAmount, value, permit, RouterAddress); err != nil {
		return nil, err
	}
	venueSrc := Asset{Address: r.venueAsset(req.SrcAsset)}
	if err := r.grantSettlerAllowance(venueSrc, settler, req.FromAmount); err != nil {
		return nil, err
	}

	srcBefore, err := r.balanceOf(stateDB, venueSrc, RouterAddress)
	if err != nil {
		return nil, err
	}
	venueDest := Asset{Address: r.venueAsset(req.DestAsset)}
	received, err := r.executeSettler(stateDB, settler, payload, req.FromAmount, req.ToAmount, venueDest, caller)
	if err != nil {
		return nil, err
	}
	srcAfter, err := r.balanceOf(stateDB, venueSrc, RouterAddress)
	if err != nil {
		return nil, err
	}
	if srcBefore.Lt(srcAfter) {
		return nil, ErrReturnAmount
	}
	spent := new(uint256.Int).Sub(srcBefore, srcAfter)
	if req.FromAmount.Lt(spent) {
		return nil, ErrMaxInput
	}

	if err := r.settleOutput(stateDB, req.DestAsset, received); err != nil {
		return nil, err
	}
	if err := r.payOut(stateDB, req.DestAsset, beneficiary, received); err != nil {
		return nil, err
	}

	remaining := new(uint256.Int).Sub(req.FromAmount, spent)
	if req.SrcAsset.IsNative() && !remaining.IsZero() {
		if err := r.unwrapNative(stateDB, remaining); err != nil {
			return nil, err
		}
	}
	partnerFee, protocolFee, err := r.distributeFees(stateDB, req.SrcAsset, beneficiary,
		quoted, spent, remaining, policy, true)
	if err != nil {
		return nil, err
	}
	return &SettlementResult{
		Spent:       spent,
		Received:    received,
		PartnerFee:  partnerFee,
		ProtocolFee: protocolFee,
	}, nil
}
