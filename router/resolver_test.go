// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func newTestResolver(scheme SaltScheme) *Resolver {
	rs := NewResolver(memdb.New())
	rs.Register(VenueParams{
		Factory:      testFactory,
		InitCodeHash: common.HexToHash("0x0102030405060708091011121314151617181920212223242526272829303132"),
		Scheme:       scheme,
	})
	return rs
}

func TestResolverDeterminism(t *testing.T) {
	rs := newTestResolver(SchemePair)

	first, err := rs.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)
	second, err := rs.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.NotEqual(t, common.Address{}, first)
}

func TestResolverOrderInsensitive(t *testing.T) {
	rs := newTestResolver(SchemePair)

	forward, err := rs.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)
	reversed, err := rs.PairAddress(testFactory, testTokenB, testTokenA)
	require.NoError(t, err)
	require.Equal(t, forward, reversed)

	rs = newTestResolver(SchemeTiered)
	tiered, err := rs.TieredAddress(testFactory, PairKey{Token0: testTokenA, Token1: testTokenB, Fee: 3000})
	require.NoError(t, err)
	swapped, err := rs.TieredAddress(testFactory, PairKey{Token0: testTokenB, Token1: testTokenA, Fee: 3000})
	require.NoError(t, err)
	require.Equal(t, tiered, swapped)
}

func TestResolverFeeTierDistinguishes(t *testing.T) {
	rs := newTestResolver(SchemeTiered)

	low, err := rs.TieredAddress(testFactory, PairKey{Token0: testTokenA, Token1: testTokenB, Fee: 500})
	require.NoError(t, err)
	high, err := rs.TieredAddress(testFactory, PairKey{Token0: testTokenA, Token1: testTokenB, Fee: 3000})
	require.NoError(t, err)
	require.NotEqual(t, low, high)
}

func TestResolverSchemesDiffer(t *testing.T) {
	pair := newTestResolver(SchemePair)
	tiered := newTestResolver(SchemeTiered)

	a, err := pair.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)
	b, err := tiered.TieredAddress(testFactory, PairKey{Token0: testTokenA, Token1: testTokenB})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestResolverUnregisteredFactory(t *testing.T) {
	rs := NewResolver(memdb.New())
	_, err := rs.PairAddress(testFactory, testTokenA, testTokenB)
	require.ErrorIs(t, err, ErrNoVenueParams)
}

func TestResolverMatchesDeploymentFormula(t *testing.T) {
	initCodeHash := common.HexToHash("0x0102030405060708091011121314151617181920212223242526272829303132")
	rs := NewResolver(nil)
	rs.Register(VenueParams{Factory: testFactory, InitCodeHash: initCodeHash, Scheme: SchemePair})

	got, err := rs.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)

	// Recompute by hand: salt over the packed sorted pair, then the
	// 0xff-prefixed two-stage hash truncated to 20 bytes.
	token0, token1 := sortTokens(testTokenA, testTokenB)
	var pre [40]byte
	copy(pre[0:20], token0.Bytes())
	copy(pre[20:40], token1.Bytes())
	salt := crypto.Keccak256(pre[:])

	preimage := append([]byte{0xff}, testFactory.Bytes()...)
	preimage = append(preimage, salt...)
	preimage = append(preimage, initCodeHash.Bytes()...)
	want := common.BytesToAddress(crypto.Keccak256(preimage)[12:])

	require.Equal(t, want, got)
}

func TestResolverCachePoisoningIsHarmless(t *testing.T) {
	db := memdb.New()
	rs := NewResolver(db)
	rs.Register(VenueParams{
		Factory:      testFactory,
		InitCodeHash: common.HexToHash("0xabab"),
		Scheme:       SchemePair,
	})

	first, err := rs.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)

	// A second resolver over the same database serves from cache and agrees
	// with recomputation.
	rs2 := NewResolver(db)
	rs2.Register(VenueParams{
		Factory:      testFactory,
		InitCodeHash: common.HexToHash("0xabab"),
		Scheme:       SchemePair,
	})
	again, err := rs2.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)
	require.Equal(t, first, again)

	// A resolver with no cache at all still derives the same address.
	rs3 := NewResolver(nil)
	rs3.Register(VenueParams{
		Factory:      testFactory,
		InitCodeHash: common.HexToHash("0xabab"),
		Scheme:       SchemePair,
	})
	recomputed, err := rs3.PairAddress(testFactory, testTokenA, testTokenB)
	require.NoError(t, err)
	require.Equal(t, first, recomputed)
}
