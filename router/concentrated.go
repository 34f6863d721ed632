// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// ============================================================================
// Callback context codec
// ============================================================================

const callbackContextVersion = 0x01

// callbackContext is the continuation the engine hands to a concentrated pool
// at swap time and receives back, verbatim, inside PayCallback. Exact-output
// chains recurse through it: the callback for hop i settles its debt by
// swapping hop i-1 with the recipient set to the calling pool.
type callbackContext struct {
	ExactOut bool
	Payer    common.Address
	Factory  common.Address
	Index    int
	Hops     []CLHop
	Permit   []byte
}

func (c *callbackContext) encode() []byte {
	buf := make([]byte, 0, 2+20+20+2+2+len(c.Hops)*45+2+len(c.Permit))
	buf = append(buf, callbackContextVersion)
	var flags byte
	if c.ExactOut {
		flags |= 0x01
	}
	buf = append(buf, flags)
	buf = append(buf, c.Payer.Bytes()...)
	buf = append(buf, c.Factory.Bytes()...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.Index))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Hops)))
	for _, hop := range c.Hops {
		buf = append(buf, hop.Key.Token0.Bytes()...)
		buf = append(buf, hop.Key.Token1.Bytes()...)
		buf = binary.BigEndian.AppendUint32(buf, hop.Key.Fee)
		if hop.ZeroForOne {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Permit)))
	buf = append(buf, c.Permit...)
	return buf
}

func decodeCallbackContext(data []byte) (*callbackContext, error) {
	if len(data) < 46 || data[0] != callbackContextVersion {
		return nil, fmt.Errorf("%w: malformed callback context", ErrUntrustedCallback)
	}
	ctx := &callbackContext{ExactOut: data[1]&0x01 != 0}
	ctx.Payer = common.BytesToAddress(data[2:22])
	ctx.Factory = common.BytesToAddress(data[22:42])
	ctx.Index = int(binary.BigEndian.Uint16(data[42:44]))
	hopCount := int(binary.BigEndian.Uint16(data[44:46]))
	off := 46
	if len(data) < off+hopCount*45+2 {
		return nil, fmt.Errorf("%w: truncated callback context", ErrUntrustedCallback)
	}
	ctx.Hops = make([]CLHop, hopCount)
	for i := range ctx.Hops {
		ctx.Hops[i].Key.Token0 = common.BytesToAddress(data[off : off+20])
		ctx.Hops[i].Key.Token1 = common.BytesToAddress(data[off+20 : off+40])
		ctx.Hops[i].Key.Fee = binary.BigEndian.Uint32(data[off+40 : off+44])
		ctx.Hops[i].ZeroForOne = data[off+44] == 1
		off += 45
	}
	permitLen := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if len(data) != off+permitLen {
		return nil, fmt.Errorf("%w: truncated callback context", ErrUntrustedCallback)
	}
	if permitLen > 0 {
		ctx.Permit = append([]byte(nil), data[off:]...)
	}
	if ctx.Index >= hopCount {
		return nil, fmt.Errorf("%w: hop index out of range", ErrUntrustedCallback)
	}
	return ctx, nil
}

// ============================================================================
// Executors
// ============================================================================

// clPoolFor derives the canonical pool address for a hop key and binds it.
func (r *Router) clPoolFor(factory common.Address, key PairKey) (common.Address, CLPool, error) {
	addr, err := r.resolver.TieredAddress(factory, key)
	if err != nil {
		return common.Address{}, nil, err
	}
	pool, err := r.venues.CL(addr)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("%w: %s", ErrUnknownPool, addr.Hex())
	}
	return addr, pool, nil
}

// swapCLChain executes an exact-input concentrated path hop by hop. Each hop
// delivers its output to the engine; the callback pays the first hop's input
// from the payer (applying the authorization payload) and later hops from the
// engine's own balance.
func (r *Router) swapCLChain(payer, factory common.Address, hops []CLHop, amountIn *uint256.Int, permit []byte) (*uint256.Int, error) {
	if len(hops) == 0 {
		return nil, ErrEmptyPath
	}
	amount := amountIn.Clone()
	for i, hop := range hops {
		addr, pool, err := r.clPoolFor(factory, hop.Key)
		if err != nil {
			return nil, err
		}
		ctx := &callbackContext{
			Payer:   RouterAddress,
			Factory: factory,
			Index:   i,
			Hops:    hops,
		}
		if i == 0 {
			ctx.Payer = payer
			ctx.Permit = permit
		}

		r.callbackDepth++
		d0, d1, err := pool.Swap(RouterAddress, hop.ZeroForOne, amount.ToBig(), nil, ctx.encode())
		r.callbackDepth--
		if err != nil {
			return nil, fmt.Errorf("pool %s hop %d: %w", addr.Hex(), i, err)
		}
		out, err := outputDelta(d0, d1, hop.ZeroForOne)
		if err != nil {
			return nil, fmt.Errorf("pool %s hop %d: %w", addr.Hex(), i, err)
		}
		r.log.Debug("cl hop executed", "hop", i, "pool", addr.Hex(), "in", amount.String(), "out", out.String())
		amount = out
	}
	return amount, nil
}

// buyCLChain executes an exact-output concentrated path. Only the final hop
// is swapped here; debts propagate backwards through PayCallback until the
// first hop pulls from the payer. The realized input is recorded by the
// innermost callback frame.
func (r *Router) buyCLChain(payer, factory common.Address, hops []CLHop, amountOut, maxIn *uint256.Int, permit []byte) (spent, received *uint256.Int, err error) {
	if len(hops) == 0 {
		return nil, nil, ErrEmptyPath
	}
	last := len(hops) - 1
	addr, pool, err := r.clPoolFor(factory, hops[last].Key)
	if err != nil {
		return nil, nil, err
	}
	ctx := &callbackContext{
		ExactOut: true,
		Payer:    payer,
		Factory:  factory,
		Index:    last,
		Hops:     hops,
		Permit:   permit,
	}

	specified := new(big.Int).Neg(amountOut.ToBig())
	r.callbackDepth++
	r.callbackAmountIn = nil
	d0, d1, err := pool.Swap(RouterAddress, hops[last].ZeroForOne, specified, nil, ctx.encode())
	r.callbackDepth--
	if err != nil {
		return nil, nil, fmt.Errorf("pool %s hop %d: %w", addr.Hex(), last, err)
	}
	received, err = outputDelta(d0, d1, hops[last].ZeroForOne)
	if err != nil {
		return nil, nil, fmt.Errorf("pool %s hop %d: %w", addr.Hex(), last, err)
	}
	if received.Lt(amountOut) {
		return nil, nil, ErrInsufficientLiq
	}
	spent = r.callbackAmountIn
	r.callbackAmountIn = nil
	if spent == nil {
		return nil, nil, ErrNoActiveCallback
	}
	if maxIn.Lt(spent) {
		return nil, nil, ErrMaxInput
	}
	return spent, received, nil
}

// PayCallback is invoked by a concentrated pool mid-swap to collect the side
// of the trade it is owed. The caller is authenticated by re-deriving the
// pool address for the hop named in the continuation: any caller that is not
// the canonical pool for that key is rejected before funds move.
func (r *Router) PayCallback(caller common.Address, amount0Delta, amount1Delta *big.Int, data []byte) error {
	if r.callbackDepth == 0 {
		return ErrNoActiveCallback
	}
	ctx, err := decodeCallbackContext(data)
	if err != nil {
		return err
	}
	hop := ctx.Hops[ctx.Index]

	expected, err := r.resolver.TieredAddress(ctx.Factory, hop.Key)
	if err != nil {
		return err
	}
	if caller != expected {
		return fmt.Errorf("%w: caller %s, want %s", ErrUntrustedCallback, caller.Hex(), expected.Hex())
	}

	owed, err := inputDelta(amount0Delta, amount1Delta, hop.ZeroForOne)
	if err != nil {
		return err
	}

	if ctx.ExactOut && ctx.Index > 0 {
		// Chain backwards: the previous hop's output settles this debt,
		// delivered straight to the calling pool.
		return r.paybackThroughPrevHop(caller, ctx, owed)
	}

	if ctx.ExactOut {
		r.callbackAmountIn = owed.Clone()
	}
	if ctx.Payer == RouterAddress {
		token, err := r.tokens.Token(hop.In())
		if err != nil {
			return err
		}
		return token.Transfer(RouterAddress, caller, owed)
	}
	return r.transferTokensFrom(hop.In(), ctx.Payer, caller, owed, ctx.Permit)
}

// paybackThroughPrevHop swaps hop Index-1 exact-output for the owed amount,
// with the current pool as recipient, continuing the reverse chain.
func (r *Router) paybackThroughPrevHop(to common.Address, ctx *callbackContext, owed *uint256.Int) error {
	prev := ctx.Hops[ctx.Index-1]
	addr, pool, err := r.clPoolFor(ctx.Factory, prev.Key)
	if err != nil {
		return err
	}
	next := &callbackContext{
		ExactOut: true,
		Payer:    ctx.Payer,
		Factory:  ctx.Factory,
		Index:    ctx.Index - 1,
		Hops:     ctx.Hops,
		Permit:   ctx.Permit,
	}
	d0, d1, err := pool.Swap(to, prev.ZeroForOne, new(big.Int).Neg(owed.ToBig()), nil, next.encode())
	if err != nil {
		return fmt.Errorf("pool %s hop %d: %w", addr.Hex(), ctx.Index-1, err)
	}
	out, err := outputDelta(d0, d1, prev.ZeroForOne)
	if err != nil {
		return fmt.Errorf("pool %s hop %d: %w", addr.Hex(), ctx.Index-1, err)
	}
	if out.Lt(owed) {
		return ErrInsufficientLiq
	}
	return nil
}

// inputDelta extracts the amount owed to the pool (the positive delta on the
// input side) from a pool's signed swap deltas.
func inputDelta(d0, d1 *big.Int, zeroForOne bool) (*uint256.Int, error) {
	d := d1
	if zeroForOne {
		d = d0
	}
	if d == nil || d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive input delta", ErrInsufficientLiq)
	}
	u, overflow := uint256.FromBig(d)
	if overflow {
		return nil, fmt.Errorf("%w: input delta overflow", ErrInsufficientLiq)
	}
	return u, nil
}

// outputDelta extracts the amount the pool paid out (the negative delta on
// the output side), as a positive quantity.
func outputDelta(d0, d1 *big.Int, zeroForOne bool) (*uint256.Int, error) {
	d := d0
	if zeroForOne {
		d = d1
	}
	if d == nil || d.Sign() > 0 {
		return nil, fmt.Errorf("%w: non-negative output delta", ErrInsufficientLiq)
	}
	u, overflow := uint256.FromBig(new(big.Int).Neg(d))
	if overflow {
		return nil, fmt.Errorf("%w: output delta overflow", ErrInsufficientLiq)
	}
	return u, nil
}
