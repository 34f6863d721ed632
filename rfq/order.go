// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rfq implements the signed-order venue: maker orders with packed
// digests, secp256k1 maker signatures and an aggregate partial-fill ledger.
package rfq

import (
	"crypto/elliptic"
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

var (
	ErrTakerMismatch = errors.New("rfq: order restricted to another taker")
	ErrBadSignature  = errors.New("rfq: maker signature invalid")
	ErrExpired       = errors.New("rfq: order expired")
	ErrExhausted     = errors.New("rfq: order fully filled")
)

// Order is a maker's signed offer: MakerAmount of MakerAsset in exchange for
// TakerAmount of TakerAsset, fillable in parts until Expiry. A zero Taker
// leaves the order open to anyone.
type Order struct {
	Maker       common.Address
	Taker       common.Address
	MakerAsset  common.Address
	TakerAsset  common.Address
	MakerAmount *uint256.Int
	TakerAmount *uint256.Int
	Expiry      uint64
	Nonce       uint64
}

// Digest is the keccak256 hash over the packed order fields; it identifies
// the order in the fill ledger and is what the maker signs.
func (o *Order) Digest() common.Hash {
	buf := make([]byte, 0, 4*20+2*32+2*8)
	buf = append(buf, o.Maker.Bytes()...)
	buf = append(buf, o.Taker.Bytes()...)
	buf = append(buf, o.MakerAsset.Bytes()...)
	buf = append(buf, o.TakerAsset.Bytes()...)
	ma := o.MakerAmount.Bytes32()
	ta := o.TakerAmount.Bytes32()
	buf = append(buf, ma[:]...)
	buf = append(buf, ta[:]...)
	var word [8]byte
	for i := 0; i < 8; i++ {
		word[i] = byte(o.Expiry >> (56 - 8*i))
	}
	buf = append(buf, word[:]...)
	for i := 0; i < 8; i++ {
		word[i] = byte(o.Nonce >> (56 - 8*i))
	}
	buf = append(buf, word[:]...)
	return common.BytesToHash(crypto.Keccak256(buf))
}

// CheckTaker verifies the restricted-taker field against the initiating
// party. Unrestricted orders always pass.
func (o *Order) CheckTaker(taker common.Address) error {
	if o.Taker != (common.Address{}) && o.Taker != taker {
		return ErrTakerMismatch
	}
	return nil
}

// RecoverSigner recovers the address that produced a 65-byte r||s||v
// signature over the digest.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, ErrBadSignature
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	raw := elliptic.Marshal(crypto.S256(), pub.X, pub.Y)
	return common.BytesToAddress(crypto.Keccak256(raw[1:])[12:]), nil
}

// VerifyMaker checks that sig is the maker's signature over the order digest.
func (o *Order) VerifyMaker(sig []byte) error {
	signer, err := RecoverSigner(o.Digest(), sig)
	if err != nil {
		return err
	}
	if signer != o.Maker {
		return ErrBadSignature
	}
	return nil
}

// TakerCost converts a maker-asset fill amount to the taker-asset cost at
// the order's rate, rounded up so partial fills never favor the taker.
func (o *Order) TakerCost(makerTake *uint256.Int) *uint256.Int {
	num := new(uint256.Int).Mul(makerTake, o.TakerAmount)
	rem := new(uint256.Int)
	num.DivMod(num, o.MakerAmount, rem)
	if !rem.IsZero() {
		num.AddUint64(num, 1)
	}
	return num
}

// MakerTakeForBudget returns the largest maker-asset amount a taker-asset
// budget buys at the order's rate.
func (o *Order) MakerTakeForBudget(budget *uint256.Int) *uint256.Int {
	take := new(uint256.Int).Mul(budget, o.MakerAmount)
	return take.Div(take, o.TakerAmount)
}
