// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/router/rfq"
)

// FillOrders batch-fills signed maker orders toward the requested output
// total. The restricted-taker check runs up front and fails the whole call;
// after that, orders that individually cannot fill (bad signature, expired,
// exhausted, maker pull failure) are skipped and the batch continues until
// the target is met or orders run out. A partial fill is a valid outcome;
// the result reports what actually filled. Unused input refunds to the
// caller, less one unit when a native unwrap step ran.
func (r *Router) FillOrders(stateDB StateDB, caller common.Address, value *uint256.Int, req *SwapRequest, feeWord *uint256.Int, permit []byte, orders []rfq.Order, sigs [][]byte, now uint64) (*SettlementResult, error) {
	if err := r.checkNotPaused(stateDB); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	if len(sigs) != len(orders) {
		return nil, fmt.Errorf("%w: %d orders, %d signatures", ErrNoOrders, len(orders), len(sigs))
	}
	if err := req.validate(false); err != nil {
		return nil, err
	}
	policy := ParseFeePolicy(feeWord)
	beneficiary := req.receiver(caller)

	// Authorization first: a restricted taker that is not the caller fails
	// the entire batch, never skips.
	for i := range orders {
		if err := orders[i].CheckTaker(caller); err != nil {
			return nil, err
		}
	}

	if err := r.secureInput(stateDB, caller, req.SrcAsset, req.FromAmount, value, permit, RouterAddress); err != nil {
		return nil, err
	}

	takerAssetAddr := r.venueAsset(req.SrcAsset)
	makerAssetAddr := r.venueAsset(req.DestAsset)
	takerToken, err := r.tokens.Token(takerAssetAddr)
	if err != nil {
		return nil, err
	}
	makerToken, err := r.tokens.Token(makerAssetAddr)
	if err != nil {
		return nil, err
	}

	budget := req.FromAmount.Clone()
	filledOut := new(uint256.Int)
	spent := new(uint256.Int)

	for i := range orders {
		if !filledOut.Lt(req.ToAmount) || budget.IsZero() {
			break
		}
		order := &orders[i]

		if order.TakerAsset != takerAssetAddr || order.MakerAsset != makerAssetAddr {
			r.log.Warn("order skipped", "index", i, "reason", "asset mismatch")
			continue
		}
		if err := order.VerifyMaker(sigs[i]); err != nil {
			r.log.Warn("order skipped", "index", i, "reason", err)
			continue
		}
		if order.Expiry < now {
			r.log.Warn("order skipped", "index", i, "reason", rfq.ErrExpired)
			continue
		}
		remaining := r.orders.Remaining(stateDB, order)
		if remaining.IsZero() {
			r.log.Warn("order skipped", "index", i, "reason", rfq.ErrExhausted)
			continue
		}

		take := new(uint256.Int).Sub(req.ToAmount, filledOut)
		if remaining.Lt(take) {
			take.Set(remaining)
		}
		cost := order.TakerCost(take)
		if budget.Lt(cost) {
			take = order.MakerTakeForBudget(budget)
			if remaining.Lt(take) {
				take.Set(remaining)
			}
			if take.IsZero() {
				continue
			}
			cost = order.TakerCost(take)
		}

		if err := makerToken.TransferFrom(RouterAddress, order.Maker, RouterAddress, take); err != nil {
			r.log.Warn("order skipped", "index", i, "reason", err)
			continue
		}
		if err := takerToken.Transfer(RouterAddress, order.Maker, cost); err != nil {
			return nil, err
		}
		r.orders.RecordFill(stateDB, order.Digest(), take)

		filledOut.Add(filledOut, take)
		spent.Add(spent, cost)
		budget.Sub(budget, cost)
		r.log.Debug("order filled", "index", i, "maker", order.Maker.Hex(), "take", take.String(), "cost", cost.String())
	}

	if err := r.settleOutput(stateDB, req.DestAsset, filledOut); err != nil {
		return nil, err
	}
	partnerFee, protocolFee, err := r.distributeFees(stateDB, req.DestAsset, beneficiary,
		quotedAmount(req, false), filledOut, filledOut, policy, false)
	if err != nil {
		return nil, err
	}

	if !budget.IsZero() {
		refund := budget.Clone()
		if req.SrcAsset.IsNative() {
			if err := r.unwrapNative(stateDB, refund); err != nil {
				return nil, err
			}
			// The unwrap step keeps one unit behind.
			if !refund.GtUint64(Dust) {
				refund.Clear()
			} else {
				refund.SubUint64(refund, Dust)
			}
		}
		if !refund.IsZero() {
			if err := r.payOut(stateDB, req.SrcAsset, caller, refund); err != nil {
				return nil, err
			}
		}
	}

	return &SettlementResult{
		Spent:       spent,
		Received:    filledOut,
		PartnerFee:  partnerFee,
		ProtocolFee: protocolFee,
	}, nil
}
