// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// executeSettler delegates a trade to an external settlement routine. The
// input has already been pulled onto the engine and, for token inputs, been
// approved to the delegate; the delegate is expected to leave at least
// minReceived of the destination asset on the engine. Its success return is
// never trusted: the engine re-measures its own balance and the delta is the
// only outcome that counts.
func (r *Router) executeSettler(stateDB StateDB, settlerAddr common.Address, payload []byte, fromAmount, minReceived *uint256.Int, dest Asset, initiator common.Address) (*uint256.Int, error) {
	settler, err := r.venues.Settler(settlerAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, settlerAddr.Hex())
	}

	before, err := r.balanceOf(stateDB, dest, RouterAddress)
	if err != nil {
		return nil, err
	}

	if err := settler.Execute(payload, fromAmount, minReceived, initiator); err != nil {
		return nil, err
	}

	after, err := r.balanceOf(stateDB, dest, RouterAddress)
	if err != nil {
		return nil, err
	}
	if after.Lt(before) {
		return nil, ErrReturnAmount
	}
	received := new(uint256.Int).Sub(after, before)
	if received.Lt(minReceived) {
		return nil, fmt.Errorf("%w: got %s, want at least %s", ErrReturnAmount, received.String(), minReceived.String())
	}

	r.log.Debug("settler executed", "settler", settlerAddr.Hex(), "spent", fromAmount.String(), "received", received.String())
	return received, nil
}

// grantSettlerAllowance approves the delegate to pull the token input it is
// about to consume. Native input needs no approval; the value travels with
// the call.
func (r *Router) grantSettlerAllowance(src Asset, settlerAddr common.Address, amount *uint256.Int) error {
	if src.IsNative() {
		return nil
	}
	token, err := r.tokens.Token(src.Address)
	if err != nil {
		return err
	}
	return token.Approve(RouterAddress, settlerAddr, amount)
}
