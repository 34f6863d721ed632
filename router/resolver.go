// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/luxfi/crypto"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
)

// SaltScheme selects how a venue packs pool-identifying fields into the salt
// preimage of its deployment-address formula.
type SaltScheme uint8

const (
	// SchemePair hashes the packed sorted token pair (40 bytes).
	SchemePair SaltScheme = iota

	// SchemeTiered hashes the ABI-encoded sorted token pair plus fee tier
	// (three 32-byte words).
	SchemeTiered
)

// VenueParams are a venue's published deployment parameters. InitCodeHash is
// the hash of the pool contract's creation code; together with the factory it
// fixes every pool address the venue can ever deploy.
type VenueParams struct {
	Factory      common.Address
	InitCodeHash common.Hash
	Scheme       SaltScheme
}

var ErrNoVenueParams = errors.New("no parameters registered for venue")

// Resolver derives pool addresses deterministically from identifying data,
// with no registry lookup. Derived addresses are cached; the cache is
// derivable state, never authoritative, and any read failure falls back to
// recomputation.
type Resolver struct {
	params map[common.Address]VenueParams
	cache  database.Database
}

// NewResolver creates a resolver backed by the given cache database.
func NewResolver(cache database.Database) *Resolver {
	return &Resolver{
		params: make(map[common.Address]VenueParams),
		cache:  cache,
	}
}

// Register records a venue's deployment parameters under its factory address.
func (rs *Resolver) Register(p VenueParams) {
	rs.params[p.Factory] = p
}

// PairAddress derives the pool address for a token pair on a SchemePair
// venue. Token order does not matter; the pair is sorted before hashing.
func (rs *Resolver) PairAddress(factory, tokenA, tokenB common.Address) (common.Address, error) {
	return rs.derive(factory, tokenA, tokenB, 0)
}

// TieredAddress derives the pool address for a token pair and fee tier on a
// SchemeTiered venue.
func (rs *Resolver) TieredAddress(factory common.Address, key PairKey) (common.Address, error) {
	return rs.derive(factory, key.Token0, key.Token1, key.Fee)
}

func (rs *Resolver) derive(factory, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	p, ok := rs.params[factory]
	if !ok {
		return common.Address{}, ErrNoVenueParams
	}

	token0, token1 := sortTokens(tokenA, tokenB)
	salt := saltFor(p.Scheme, token0, token1, fee)

	if addr, ok := rs.cached(factory, salt); ok {
		return addr, nil
	}

	// Two-stage hash, reproducing the venue's deployment formula bit for
	// bit: keccak256(0xff ++ factory ++ salt ++ initCodeHash), truncated to
	// the address width.
	preimage := make([]byte, 0, 1+20+32+32)
	preimage = append(preimage, 0xff)
	preimage = append(preimage, factory.Bytes()...)
	preimage = append(preimage, salt[:]...)
	preimage = append(preimage, p.InitCodeHash.Bytes()...)
	addr := common.BytesToAddress(crypto.Keccak256(preimage)[12:])

	rs.remember(factory, salt, addr)
	return addr, nil
}

// saltFor computes the first-stage hash over the packed pool-identifying
// fields.
func saltFor(scheme SaltScheme, token0, token1 common.Address, fee uint32) common.Hash {
	switch scheme {
	case SchemeTiered:
		var pre [96]byte
		copy(pre[12:32], token0.Bytes())
		copy(pre[44:64], token1.Bytes())
		binary.BigEndian.PutUint32(pre[92:96], fee)
		return common.BytesToHash(crypto.Keccak256(pre[:]))
	default:
		var pre [40]byte
		copy(pre[0:20], token0.Bytes())
		copy(pre[20:40], token1.Bytes())
		return common.BytesToHash(crypto.Keccak256(pre[:]))
	}
}

// sortTokens orders a pair canonically by address bytes.
func sortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// SortedPairKey builds a canonical PairKey regardless of argument order.
func SortedPairKey(tokenA, tokenB common.Address, fee uint32) PairKey {
	t0, t1 := sortTokens(tokenA, tokenB)
	return PairKey{Token0: t0, Token1: t1, Fee: fee}
}

func cacheKey(factory common.Address, salt common.Hash) []byte {
	key := make([]byte, 0, 20+32)
	key = append(key, factory.Bytes()...)
	key = append(key, salt.Bytes()...)
	return key
}

func (rs *Resolver) cached(factory common.Address, salt common.Hash) (common.Address, bool) {
	if rs.cache == nil {
		return common.Address{}, false
	}
	raw, err := rs.cache.Get(cacheKey(factory, salt))
	if err != nil || len(raw) != common.AddressLength {
		return common.Address{}, false
	}
	return common.BytesToAddress(raw), true
}

func (rs *Resolver) remember(factory common.Address, salt common.Hash, addr common.Address) {
	if rs.cache == nil {
		return
	}
	// Cache write failures are ignored; the next lookup recomputes.
	_ = rs.cache.Put(cacheKey(factory, salt), addr.Bytes())
}
