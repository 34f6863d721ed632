// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Authorization payload lengths. The length alone selects the mechanism:
// an empty payload relies on a pre-existing allowance, the two fixed sizes
// are the classic permit encodings, and anything larger is handed to the
// delegated signature-transfer protocol. Any other length is an error.
const (
	permitLegacyLen    = 224 // 7 words: holder, nonce, expiry, allowed, v, r, s
	permitAllowanceLen = 256 // 8 words: owner, spender, value, deadline, v, r, s, reserved
	permitDelegatedMin = 257
)

// transferTokensFrom pulls amount of a fungible asset from payer to the
// destination, applying the authorization mechanism selected by the payload
// length. Native-asset inputs never reach this function.
func (r *Router) transferTokensFrom(asset common.Address, payer, to common.Address, amount *uint256.Int, permit []byte) error {
	switch {
	case len(permit) == 0:
		// Pre-authorized pull; payer must already hold sufficient allowance.

	case len(permit) == permitLegacyLen:
		if err := r.applyLegacyPermit(asset, payer, permit); err != nil {
			return err
		}

	case len(permit) == permitAllowanceLen:
		if err := r.applyAllowancePermit(asset, permit); err != nil {
			return err
		}

	case len(permit) >= permitDelegatedMin:
		if r.sigTransfer == nil {
			return ErrPermitFailed
		}
		if err := r.sigTransfer.PermitTransferFrom(payer, to, asset, amount, permit); err != nil {
			return fmt.Errorf("%w: %v", ErrPermitFailed, err)
		}
		return nil

	default:
		return ErrPermitLength
	}

	token, err := r.tokens.Token(asset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownToken, asset.Hex())
	}
	return token.TransferFrom(RouterAddress, payer, to, amount)
}

// applyLegacyPermit executes the two-nonce permit form. The spender is always
// the engine; holder, nonce, expiry and the allowed flag come from the
// payload.
func (r *Router) applyLegacyPermit(asset common.Address, payer common.Address, permit []byte) error {
	token, err := r.tokens.Token(asset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownToken, asset.Hex())
	}

	holder := common.BytesToAddress(permit[12:32])
	if holder != payer {
		return ErrPermitFailed
	}
	nonce := wordUint64(permit[32:64])
	expiry := wordUint64(permit[64:96])
	allowed := permit[127] != 0
	v := permit[159]
	r32 := common.BytesToHash(permit[160:192])
	s32 := common.BytesToHash(permit[192:224])

	if err := token.PermitLegacy(holder, RouterAddress, nonce, expiry, allowed, v, r32, s32); err != nil {
		return fmt.Errorf("%w: %v", ErrPermitFailed, err)
	}
	return nil
}

// applyAllowancePermit executes the allowance-style permit form. The trailing
// word is reserved and must be zero.
func (r *Router) applyAllowancePermit(asset common.Address, permit []byte) error {
	token, err := r.tokens.Token(asset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownToken, asset.Hex())
	}

	owner := common.BytesToAddress(permit[12:32])
	spender := common.BytesToAddress(permit[44:64])
	value := new(uint256.Int).SetBytes(permit[64:96])
	deadline := wordUint64(permit[96:128])
	v := permit[159]
	r32 := common.BytesToHash(permit[160:192])
	s32 := common.BytesToHash(permit[192:224])
	for _, b := range permit[224:256] {
		if b != 0 {
			return ErrPermitLength
		}
	}

	if err := token.Permit(owner, spender, value, deadline, v, r32, s32); err != nil {
		return fmt.Errorf("%w: %v", ErrPermitFailed, err)
	}
	return nil
}

// checkAttachedValue enforces the native-input rule: the attached value must
// exactly equal the declared amount.
func checkAttachedValue(amount, value *uint256.Int) error {
	if value == nil || !value.Eq(amount) {
		return ErrIncorrectValue
	}
	return nil
}

// wrapNative deposits attached native value into the fungible wrapper on the
// engine's account, for venues that cannot settle native value.
func (r *Router) wrapNative(stateDB StateDB, amount *uint256.Int) error {
	if r.wnative == nil {
		return fmt.Errorf("%w: no wrapped native configured", ErrUnknownToken)
	}
	stateDB.SubBalance(RouterAddress, amount)
	return r.wnative.Deposit(RouterAddress, amount)
}

// unwrapNative burns wrapper balance back into native value on the engine's
// account.
func (r *Router) unwrapNative(stateDB StateDB, amount *uint256.Int) error {
	if r.wnative == nil {
		return fmt.Errorf("%w: no wrapped native configured", ErrUnknownToken)
	}
	if err := r.wnative.Withdraw(RouterAddress, amount); err != nil {
		return err
	}
	stateDB.AddBalance(RouterAddress, amount)
	return nil
}

// balanceOf reads the engine-visible balance of an asset for an account.
func (r *Router) balanceOf(stateDB StateDB, asset Asset, owner common.Address) (*uint256.Int, error) {
	if asset.IsNative() {
		return stateDB.GetBalance(owner), nil
	}
	token, err := r.tokens.Token(asset.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, asset.Address.Hex())
	}
	return token.BalanceOf(owner), nil
}

// payOut moves amount of an asset from the engine to a recipient.
func (r *Router) payOut(stateDB StateDB, asset Asset, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if asset.IsNative() {
		if stateDB.GetBalance(RouterAddress).Lt(amount) {
			return ErrInsufficientFunds
		}
		stateDB.SubBalance(RouterAddress, amount)
		stateDB.AddBalance(to, amount)
		return nil
	}
	token, err := r.tokens.Token(asset.Address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownToken, asset.Address.Hex())
	}
	return token.Transfer(RouterAddress, to, amount)
}

// Pay releases engine-custodied funds to a recipient. It exists for the fee
// vault, which holds claims against assets the engine still custodies.
func (r *Router) Pay(stateDB StateDB, asset, to common.Address, amount *uint256.Int) error {
	return r.payOut(stateDB, Asset{Address: asset}, to, amount)
}

// wordUint64 reads the low 8 bytes of a big-endian 32-byte word.
func wordUint64(word []byte) uint64 {
	v := new(uint256.Int).SetBytes(word)
	return v.Uint64()
}
