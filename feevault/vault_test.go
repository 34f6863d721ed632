// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package feevault

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/router/router"
)

type memStateDB struct {
	storage map[common.Address]map[common.Hash]common.Hash
}

func newMemStateDB() *memStateDB {
	return &memStateDB{storage: make(map[common.Address]map[common.Hash]common.Hash)}
}

func (m *memStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if m.storage[addr] == nil {
		return common.Hash{}
	}
	return m.storage[addr][key]
}

func (m *memStateDB) SetState(addr common.Address, key, value common.Hash) {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[common.Hash]common.Hash)
	}
	m.storage[addr][key] = value
}

func (m *memStateDB) GetBalance(common.Address) *uint256.Int  { return new(uint256.Int) }
func (m *memStateDB) AddBalance(common.Address, *uint256.Int) {}
func (m *memStateDB) SubBalance(common.Address, *uint256.Int) {}
func (m *memStateDB) Exist(common.Address) bool               { return true }
func (m *memStateDB) CreateAccount(common.Address)            {}

type payment struct {
	asset  common.Address
	to     common.Address
	amount *uint256.Int
}

type recordingPayer struct {
	payments []payment
	fail     error
}

func (p *recordingPayer) Pay(_ router.StateDB, asset, to common.Address, amount *uint256.Int) error {
	if p.fail != nil {
		return p.fail
	}
	p.payments = append(p.payments, payment{asset: asset, to: to, amount: amount.Clone()})
	return nil
}

var (
	testContract  = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	testAsset     = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000000000d2")
	testOther     = common.HexToAddress("0x00000000000000000000000000000000000000d3")
)

func TestDepositAndClaimable(t *testing.T) {
	db := newMemStateDB()
	v := New(testContract, &recordingPayer{})

	require.True(t, v.Claimable(db, testAsset, testRecipient).IsZero())
	require.NoError(t, v.Deposit(db, testAsset, testRecipient, uint256.NewInt(100)))
	require.NoError(t, v.Deposit(db, testAsset, testRecipient, uint256.NewInt(50)))
	require.Equal(t, uint64(150), v.Claimable(db, testAsset, testRecipient).Uint64())

	// Balances are per asset and per recipient.
	require.True(t, v.Claimable(db, testAsset, testOther).IsZero())
	require.True(t, v.Claimable(db, testOther, testRecipient).IsZero())
}

func TestZeroDepositWritesNothing(t *testing.T) {
	db := newMemStateDB()
	v := New(testContract, &recordingPayer{})

	require.NoError(t, v.Deposit(db, testAsset, testRecipient, uint256.NewInt(0)))
	require.Empty(t, db.storage)
}

func TestBatchDeposit(t *testing.T) {
	db := newMemStateDB()
	v := New(testContract, &recordingPayer{})

	err := v.BatchDeposit(db, testAsset,
		[]common.Address{testRecipient, testOther},
		[]*uint256.Int{uint256.NewInt(85), uint256.NewInt(15)})
	require.NoError(t, err)
	require.Equal(t, uint64(85), v.Claimable(db, testAsset, testRecipient).Uint64())
	require.Equal(t, uint64(15), v.Claimable(db, testAsset, testOther).Uint64())
}

func TestBatchDepositLengthMismatch(t *testing.T) {
	db := newMemStateDB()
	v := New(testContract, &recordingPayer{})

	err := v.BatchDeposit(db, testAsset,
		[]common.Address{testRecipient, testOther},
		[]*uint256.Int{uint256.NewInt(85)})
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestWithdraw(t *testing.T) {
	db := newMemStateDB()
	payer := &recordingPayer{}
	v := New(testContract, payer)

	require.NoError(t, v.Deposit(db, testAsset, testRecipient, uint256.NewInt(150)))
	require.NoError(t, v.Withdraw(db, testAsset, testRecipient, testOther, uint256.NewInt(60)))

	require.Equal(t, uint64(90), v.Claimable(db, testAsset, testRecipient).Uint64())
	require.Len(t, payer.payments, 1)
	require.Equal(t, testAsset, payer.payments[0].asset)
	require.Equal(t, testOther, payer.payments[0].to)
	require.Equal(t, uint64(60), payer.payments[0].amount.Uint64())
}

func TestWithdrawExceedsClaim(t *testing.T) {
	db := newMemStateDB()
	payer := &recordingPayer{}
	v := New(testContract, payer)

	require.NoError(t, v.Deposit(db, testAsset, testRecipient, uint256.NewInt(50)))
	err := v.Withdraw(db, testAsset, testRecipient, testOther, uint256.NewInt(51))
	require.ErrorIs(t, err, ErrClaimExceeded)
	require.Equal(t, uint64(50), v.Claimable(db, testAsset, testRecipient).Uint64())
	require.Empty(t, payer.payments)
}

func TestWithdrawPayerFailure(t *testing.T) {
	db := newMemStateDB()
	failure := errors.New("custody transfer failed")
	v := New(testContract, &recordingPayer{fail: failure})

	require.NoError(t, v.Deposit(db, testAsset, testRecipient, uint256.NewInt(50)))
	err := v.Withdraw(db, testAsset, testRecipient, testOther, uint256.NewInt(10))
	require.ErrorIs(t, err, failure)
}
