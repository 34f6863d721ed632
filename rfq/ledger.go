// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rfq

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// StateDB is the slice of account state the ledger needs.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
}

var filledPrefix = []byte("rfqf")

func filledSlot(digest common.Hash) common.Hash {
	h := blake3.New()
	h.Write(filledPrefix)
	h.Write(digest[:])
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Ledger tracks cumulative fills per order digest in the given contract's
// storage. Consumption is aggregate: across any number of partial fills at
// most the order's full maker amount ever fills.
type Ledger struct {
	contract common.Address
}

func NewLedger(contract common.Address) *Ledger {
	return &Ledger{contract: contract}
}

// Filled returns the maker-asset amount already consumed for the digest.
func (l *Ledger) Filled(stateDB StateDB, digest common.Hash) *uint256.Int {
	raw := stateDB.GetState(l.contract, filledSlot(digest))
	return new(uint256.Int).SetBytes(raw[:])
}

// Remaining returns the maker-asset amount still fillable for the order.
func (l *Ledger) Remaining(stateDB StateDB, order *Order) *uint256.Int {
	filled := l.Filled(stateDB, order.Digest())
	if !filled.Lt(order.MakerAmount) {
		return new(uint256.Int)
	}
	return filled.Sub(order.MakerAmount, filled)
}

// RecordFill adds a partial fill to the digest's running total.
func (l *Ledger) RecordFill(stateDB StateDB, digest common.Hash, amount *uint256.Int) {
	total := l.Filled(stateDB, digest)
	total.Add(total, amount)
	stateDB.SetState(l.contract, filledSlot(digest), total.Bytes32())
}
