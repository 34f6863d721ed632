// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Storage key prefixes for engine state held under RouterAddress.
var (
	pausedPrefix = []byte("paus")
	adminPrefix  = []byte("admn")
)

// makeStorageKey derives a storage slot from a prefix and identifier.
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

var (
	pausedSlot = makeStorageKey(pausedPrefix, []byte("flag"))
	adminSlot  = makeStorageKey(adminPrefix, []byte("addr"))
)

// Paused reports the process-wide halt flag. Every entrypoint checks it
// before any token movement.
func (r *Router) Paused(stateDB StateDB) bool {
	return stateDB.GetState(RouterAddress, pausedSlot) != (common.Hash{})
}

// SetPaused flips the halt flag. Restricted to the administrative role.
func (r *Router) SetPaused(stateDB StateDB, caller common.Address, paused bool) error {
	if caller != r.adminOf(stateDB) {
		return ErrUnauthorized
	}
	var value common.Hash
	if paused {
		value[31] = 1
	}
	stateDB.SetState(RouterAddress, pausedSlot, value)
	r.log.Info("pause flag updated", "paused", paused, "by", caller.Hex())
	return nil
}

// TransferAdmin hands the administrative role to a new address.
func (r *Router) TransferAdmin(stateDB StateDB, caller, newAdmin common.Address) error {
	if caller != r.adminOf(stateDB) {
		return ErrUnauthorized
	}
	if newAdmin == (common.Address{}) {
		return ErrUnauthorized
	}
	stateDB.SetState(RouterAddress, adminSlot, common.BytesToHash(newAdmin.Bytes()))
	return nil
}

// adminOf reads the stored admin, falling back to the configured one before
// any transfer has been recorded.
func (r *Router) adminOf(stateDB StateDB) common.Address {
	stored := stateDB.GetState(RouterAddress, adminSlot)
	if stored == (common.Hash{}) {
		return r.admin
	}
	return common.BytesToAddress(stored[12:])
}

// checkNotPaused is the entrypoint guard.
func (r *Router) checkNotPaused(stateDB StateDB) error {
	if r.Paused(stateDB) {
		return ErrPaused
	}
	return nil
}
