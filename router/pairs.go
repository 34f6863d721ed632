// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

var (
	u10000 = uint256.NewInt(BpsDenominator)
	u9970  = uint256.NewInt(BpsDenominator - PairFeeBps)
)

// getAmountOut applies the constant-product-with-fee formula:
//
//	out = floor(in*9970*reserveOut / (reserveIn*10000 + in*9970))
func getAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiq
	}
	inWithFee := new(uint256.Int).Mul(amountIn, u9970)
	num := new(uint256.Int).Mul(inWithFee, reserveOut)
	den := new(uint256.Int).Mul(reserveIn, u10000)
	den.Add(den, inWithFee)
	return num.Div(num, den), nil
}

// getAmountIn inverts the formula to back-compute the required input:
//
//	in = floor(reserveIn*out*10000 / ((reserveOut-out)*9970)) + 1
func getAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if reserveIn.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiq
	}
	num := new(uint256.Int).Mul(reserveIn, amountOut)
	num.Mul(num, u10000)
	den := new(uint256.Int).Sub(reserveOut, amountOut)
	den.Mul(den, u9970)
	num.Div(num, den)
	return num.AddUint64(num, 1), nil
}

// resolvedHop is a PairHop bound to its live pool object.
type resolvedHop struct {
	addr     common.Address
	pool     PairPool
	tokenIn  common.Address
	tokenOut common.Address
}

// resolvePairPath binds every hop of a constant-product path, deriving pool
// addresses through the resolver where the caller left them blank.
func (r *Router) resolvePairPath(factory common.Address, path []PairHop) ([]resolvedHop, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	hops := make([]resolvedHop, len(path))
	for i, hop := range path {
		addr := hop.Pool
		if addr == (common.Address{}) {
			derived, err := r.resolver.PairAddress(factory, hop.TokenIn, hop.TokenOut)
			if err != nil {
				return nil, err
			}
			addr = derived
		}
		pool, err := r.venues.Pair(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPool, addr.Hex())
		}
		hops[i] = resolvedHop{addr: addr, pool: pool, tokenIn: hop.TokenIn, tokenOut: hop.TokenOut}
	}
	return hops, nil
}

// orient reads the hop pool's live reserves and returns them as (in, out)
// according to the hop direction.
func (h *resolvedHop) orient() (reserveIn, reserveOut *uint256.Int, zeroForOne bool) {
	token0, _ := h.pool.Tokens()
	r0, r1 := h.pool.GetReserves()
	if h.tokenIn == token0 {
		return r0, r1, true
	}
	return r1, r0, false
}

// executeHop performs one pool swap, pushing amountOut to the recipient.
func (h *resolvedHop) executeHop(amountOut *uint256.Int, zeroForOne bool, to common.Address) error {
	zero := uint256.NewInt(0)
	if zeroForOne {
		return h.pool.Swap(zero, amountOut, to)
	}
	return h.pool.Swap(amountOut, zero, to)
}

// swapPairChain walks the chain forward for an exact input already sitting on
// the first pool, forwarding each hop's output directly to the next pool and
// the final hop's output to the engine. Returns the realized output.
func (r *Router) swapPairChain(hops []resolvedHop, amountIn *uint256.Int) (*uint256.Int, error) {
	amount := amountIn.Clone()
	for i := range hops {
		hop := &hops[i]
		reserveIn, reserveOut, zeroForOne := hop.orient()
		out, err := getAmountOut(amount, reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
		to := RouterAddress
		if i+1 < len(hops) {
			to = hops[i+1].addr
		}
		if err := hop.executeHop(out, zeroForOne, to); err != nil {
			return nil, fmt.Errorf("pool %s hop %d: %w", hop.addr.Hex(), i, err)
		}
		r.log.Debug("pair hop executed", "hop", i, "pool", hop.addr.Hex(), "in", amount.String(), "out", out.String())
		amount = out
	}
	return amount, nil
}

// planPairChainExactOut back-computes the per-hop amounts needed to realize
// amountOut at the end of the chain. amounts[0] is the required input.
func (r *Router) planPairChainExactOut(hops []resolvedHop, amountOut *uint256.Int) ([]*uint256.Int, error) {
	amounts := make([]*uint256.Int, len(hops)+1)
	amounts[len(hops)] = amountOut.Clone()
	for i := len(hops) - 1; i >= 0; i-- {
		hop := &hops[i]
		reserveIn, reserveOut, _ := hop.orient()
		in, err := getAmountIn(amounts[i+1], reserveIn, reserveOut)
		if err != nil {
			return nil, fmt.Errorf("pool %s hop %d: %w", hop.addr.Hex(), i, err)
		}
		amounts[i] = in
	}
	return amounts, nil
}

// buyPairChain executes a pre-planned exact-output chain forward; the input
// amounts[0] must already sit on the first pool.
func (r *Router) buyPairChain(hops []resolvedHop, amounts []*uint256.Int) error {
	for i := range hops {
		hop := &hops[i]
		_, _, zeroForOne := hop.orient()
		to := RouterAddress
		if i+1 < len(hops) {
			to = hops[i+1].addr
		}
		if err := hop.executeHop(amounts[i+1], zeroForOne, to); err != nil {
			return fmt.Errorf("pool %s hop %d: %w", hop.addr.Hex(), i, err)
		}
	}
	return nil
}
