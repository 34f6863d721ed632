// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rfq

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	testMaker      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testTaker      = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	testMakerAsset = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testTakerAsset = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func sampleOrder() *Order {
	return &Order{
		Maker:       testMaker,
		MakerAsset:  testMakerAsset,
		TakerAsset:  testTakerAsset,
		MakerAmount: uint256.NewInt(1000),
		TakerAmount: uint256.NewInt(300),
		Expiry:      1_700_000,
		Nonce:       42,
	}
}

func keyAddress(key *ecdsa.PrivateKey) common.Address {
	raw := elliptic.Marshal(crypto.S256(), key.PublicKey.X, key.PublicKey.Y)
	return common.BytesToAddress(crypto.Keccak256(raw[1:])[12:])
}

func TestDigestDeterministic(t *testing.T) {
	a := sampleOrder()
	b := sampleOrder()
	require.Equal(t, a.Digest(), b.Digest())
}

func TestDigestSensitiveToEveryField(t *testing.T) {
	base := sampleOrder().Digest()

	mutations := map[string]func(*Order){
		"maker":        func(o *Order) { o.Maker = testTaker },
		"taker":        func(o *Order) { o.Taker = testTaker },
		"maker asset":  func(o *Order) { o.MakerAsset = testTakerAsset },
		"taker asset":  func(o *Order) { o.TakerAsset = testMakerAsset },
		"maker amount": func(o *Order) { o.MakerAmount = uint256.NewInt(1001) },
		"taker amount": func(o *Order) { o.TakerAmount = uint256.NewInt(301) },
		"expiry":       func(o *Order) { o.Expiry++ },
		"nonce":        func(o *Order) { o.Nonce++ },
	}
	for name, mutate := range mutations {
		o := sampleOrder()
		mutate(o)
		require.NotEqual(t, base, o.Digest(), name)
	}
}

func TestCheckTaker(t *testing.T) {
	open := sampleOrder()
	require.NoError(t, open.CheckTaker(testTaker))
	require.NoError(t, open.CheckTaker(common.Address{}))

	restricted := sampleOrder()
	restricted.Taker = testTaker
	require.NoError(t, restricted.CheckTaker(testTaker))
	require.ErrorIs(t, restricted.CheckTaker(testMaker), ErrTakerMismatch)
}

func TestVerifyMaker(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	order := sampleOrder()
	order.Maker = keyAddress(key)
	digest := order.Digest()
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	require.NoError(t, order.VerifyMaker(sig))

	// Any bit flip in the covered fields invalidates the signature.
	order.MakerAmount = uint256.NewInt(2000)
	require.ErrorIs(t, order.VerifyMaker(sig), ErrBadSignature)
}

func TestVerifyMakerWrongSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	order := sampleOrder()
	sig, err := crypto.Sign(order.Digest().Bytes(), key)
	require.NoError(t, err)
	require.ErrorIs(t, order.VerifyMaker(sig), ErrBadSignature)
}

func TestRecoverSignerBadLength(t *testing.T) {
	_, err := RecoverSigner(common.Hash{}, make([]byte, 64))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestTakerCostRoundsUp(t *testing.T) {
	o := sampleOrder() // 1000 maker units for 300 taker units

	// 1 maker unit costs 0.3, rounded up to 1.
	require.Equal(t, uint64(1), o.TakerCost(uint256.NewInt(1)).Uint64())
	// 10 maker units cost exactly 3.
	require.Equal(t, uint64(3), o.TakerCost(uint256.NewInt(10)).Uint64())
	// The full order costs exactly the taker amount.
	require.Equal(t, uint64(300), o.TakerCost(o.MakerAmount).Uint64())
	// 333 maker units cost 99.9, rounded up to 100.
	require.Equal(t, uint64(100), o.TakerCost(uint256.NewInt(333)).Uint64())
}

func TestMakerTakeForBudgetFloors(t *testing.T) {
	o := sampleOrder()

	// 100 taker units buy exactly 333.3 maker units, floored.
	require.Equal(t, uint64(333), o.MakerTakeForBudget(uint256.NewInt(100)).Uint64())
	require.Equal(t, uint64(0), o.MakerTakeForBudget(uint256.NewInt(0)).Uint64())
	require.Equal(t, uint64(1000), o.MakerTakeForBudget(uint256.NewInt(300)).Uint64())
}

func TestBudgetTakeNeverOverspends(t *testing.T) {
	o := sampleOrder()
	for _, budget := range []uint64{1, 7, 99, 100, 299} {
		take := o.MakerTakeForBudget(uint256.NewInt(budget))
		if take.IsZero() {
			continue
		}
		cost := o.TakerCost(take)
		require.False(t, cost.GtUint64(budget), "budget %d cost %s", budget, cost.String())
	}
}
