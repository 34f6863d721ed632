// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

// MockStateDB implements the StateDB interface for testing.
type MockStateDB struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
}

func NewMockStateDB() *MockStateDB {
	return &MockStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
	}
}

func (m *MockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if m.storage[addr] == nil {
		return common.Hash{}
	}
	return m.storage[addr][key]
}

func (m *MockStateDB) SetState(addr common.Address, key, value common.Hash) {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[common.Hash]common.Hash)
	}
	m.storage[addr][key] = value
}

func (m *MockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (m *MockStateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	m.balances[addr].Add(m.balances[addr], amount)
}

func (m *MockStateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	if m.balances[addr] == nil {
		m.balances[addr] = uint256.NewInt(0)
	}
	m.balances[addr].Sub(m.balances[addr], amount)
}

func (m *MockStateDB) Exist(common.Address) bool    { return true }
func (m *MockStateDB) CreateAccount(common.Address) {}

// ============================================================================
// Token mocks
// ============================================================================

var errMockTransfer = errors.New("mock: transfer failed")

type mockToken struct {
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int

	permitCalls       int
	legacyPermitCalls int
	failTransferFrom  bool
}

func newMockToken() *mockToken {
	return &mockToken{
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (t *mockToken) mint(owner common.Address, amount uint64) {
	t.credit(owner, uint256.NewInt(amount))
}

func (t *mockToken) credit(owner common.Address, amount *uint256.Int) {
	if t.balances[owner] == nil {
		t.balances[owner] = uint256.NewInt(0)
	}
	t.balances[owner].Add(t.balances[owner], amount)
}

func (t *mockToken) BalanceOf(owner common.Address) *uint256.Int {
	if bal, ok := t.balances[owner]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (t *mockToken) Transfer(from, to common.Address, amount *uint256.Int) error {
	if t.BalanceOf(from).Lt(amount) {
		return errMockTransfer
	}
	t.balances[from].Sub(t.balances[from], amount)
	t.credit(to, amount)
	return nil
}

func (t *mockToken) TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error {
	if t.failTransferFrom {
		return errMockTransfer
	}
	allowance := t.Allowance(owner, spender)
	if allowance.Lt(amount) {
		return errMockTransfer
	}
	if err := t.Transfer(owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	t.allowances[owner][spender] = allowance
	return nil
}

func (t *mockToken) Allowance(owner, spender common.Address) *uint256.Int {
	if t.allowances[owner] == nil {
		return uint256.NewInt(0)
	}
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return uint256.NewInt(0)
}

func (t *mockToken) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = amount.Clone()
	return nil
}

func (t *mockToken) Permit(owner, spender common.Address, value *uint256.Int, deadline uint64, v byte, r, s common.Hash) error {
	t.permitCalls++
	return t.Approve(owner, spender, value)
}

func (t *mockToken) PermitLegacy(holder, spender common.Address, nonce, expiry uint64, allowed bool, v byte, r, s common.Hash) error {
	t.legacyPermitCalls++
	if !allowed {
		return t.Approve(holder, spender, uint256.NewInt(0))
	}
	max := new(uint256.Int).SetAllOne()
	return t.Approve(holder, spender, max)
}

type mockWrappedNative struct {
	*mockToken
	addr common.Address
}

func (w *mockWrappedNative) Address() common.Address { return w.addr }

func (w *mockWrappedNative) Deposit(to common.Address, amount *uint256.Int) error {
	w.credit(to, amount)
	return nil
}

func (w *mockWrappedNative) Withdraw(from common.Address, amount *uint256.Int) error {
	if w.BalanceOf(from).Lt(amount) {
		return errMockTransfer
	}
	w.balances[from].Sub(w.balances[from], amount)
	return nil
}

type mockTokenRegistry struct {
	tokens map[common.Address]Token
}

func (r *mockTokenRegistry) add(addr common.Address, token Token) {
	r.tokens[addr] = token
}

func (r *mockTokenRegistry) Token(asset common.Address) (Token, error) {
	token, ok := r.tokens[asset]
	if !ok {
		return nil, ErrUnknownToken
	}
	return token, nil
}

// ============================================================================
// Venue mocks
// ============================================================================

var errMockPool = errors.New("mock: pool invariant violated")

// mockPairPool enforces the constant-product invariant with the 0.30% trade
// fee, mirroring the real venue contract.
type mockPairPool struct {
	addr           common.Address
	token0, token1 *mockToken
	addr0, addr1   common.Address
	reserve0       *uint256.Int
	reserve1       *uint256.Int
}

func (p *mockPairPool) Tokens() (common.Address, common.Address) {
	return p.addr0, p.addr1
}

func (p *mockPairPool) GetReserves() (*uint256.Int, *uint256.Int) {
	return p.reserve0.Clone(), p.reserve1.Clone()
}

func (p *mockPairPool) Swap(amount0Out, amount1Out *uint256.Int, to common.Address) error {
	if p.reserve0.Lt(amount0Out) || p.reserve1.Lt(amount1Out) {
		return errMockPool
	}
	if !amount0Out.IsZero() {
		if err := p.token0.Transfer(p.addr, to, amount0Out); err != nil {
			return err
		}
	}
	if !amount1Out.IsZero() {
		if err := p.token1.Transfer(p.addr, to, amount1Out); err != nil {
			return err
		}
	}

	bal0 := p.token0.BalanceOf(p.addr)
	bal1 := p.token1.BalanceOf(p.addr)
	in0 := amountIn(bal0, p.reserve0, amount0Out)
	in1 := amountIn(bal1, p.reserve1, amount1Out)

	adj0 := adjustedBalance(bal0, in0)
	adj1 := adjustedBalance(bal1, in1)
	kBefore := new(uint256.Int).Mul(p.reserve0, p.reserve1)
	kBefore.Mul(kBefore, uint256.NewInt(BpsDenominator*BpsDenominator))
	kAfter := new(uint256.Int).Mul(adj0, adj1)
	if kAfter.Lt(kBefore) {
		return errMockPool
	}

	p.reserve0 = bal0
	p.reserve1 = bal1
	return nil
}

func amountIn(balance, reserve, out *uint256.Int) *uint256.Int {
	floor := new(uint256.Int).Sub(reserve, out)
	if balance.Gt(floor) {
		return new(uint256.Int).Sub(balance, floor)
	}
	return new(uint256.Int)
}

func adjustedBalance(balance, in *uint256.Int) *uint256.Int {
	adj := new(uint256.Int).Mul(balance, uint256.NewInt(BpsDenominator))
	fee := new(uint256.Int).Mul(in, uint256.NewInt(PairFeeBps))
	return adj.Sub(adj, fee)
}

// mockCLPool settles at a fixed rate (out = in * rateNum / rateDen) and
// collects its input through the engine's pay callback, like the real venue.
type mockCLPool struct {
	addr           common.Address
	token0, token1 *mockToken
	rateNum        uint64
	rateDen        uint64
	engine         CallbackHandler
}

func (p *mockCLPool) Swap(recipient common.Address, zeroForOne bool, amountSpecified *big.Int, priceLimit *uint256.Int, data []byte) (*big.Int, *big.Int, error) {
	var in, out *uint256.Int
	if amountSpecified.Sign() > 0 {
		in, _ = uint256.FromBig(amountSpecified)
		out = new(uint256.Int).Mul(in, uint256.NewInt(p.rateNum))
		out.Div(out, uint256.NewInt(p.rateDen))
	} else {
		out, _ = uint256.FromBig(new(big.Int).Neg(amountSpecified))
		in = new(uint256.Int).Mul(out, uint256.NewInt(p.rateDen))
		rem := new(uint256.Int)
		in.DivMod(in, uint256.NewInt(p.rateNum), rem)
		if !rem.IsZero() {
			in.AddUint64(in, 1)
		}
	}

	tokenIn, tokenOut := p.token1, p.token0
	if zeroForOne {
		tokenIn, tokenOut = p.token0, p.token1
	}
	if err := tokenOut.Transfer(p.addr, recipient, out); err != nil {
		return nil, nil, err
	}

	inBig := in.ToBig()
	outBig := new(big.Int).Neg(out.ToBig())
	d0, d1 := outBig, inBig
	if zeroForOne {
		d0, d1 = inBig, outBig
	}

	before := tokenIn.BalanceOf(p.addr)
	if err := p.engine.PayCallback(p.addr, d0, d1, data); err != nil {
		return nil, nil, err
	}
	after := tokenIn.BalanceOf(p.addr)
	paid := new(uint256.Int).Sub(after, before)
	if paid.Lt(in) {
		return nil, nil, errMockPool
	}
	return d0, d1, nil
}

type mockSettler struct {
	execute func(payload []byte, fromAmount, toAmount *uint256.Int, initiator common.Address) error
}

func (s *mockSettler) Execute(payload []byte, fromAmount, toAmount *uint256.Int, initiator common.Address) error {
	return s.execute(payload, fromAmount, toAmount, initiator)
}

type mockVenueHost struct {
	pairs    map[common.Address]PairPool
	cls      map[common.Address]CLPool
	settlers map[common.Address]Settler
}

func newMockVenueHost() *mockVenueHost {
	return &mockVenueHost{
		pairs:    make(map[common.Address]PairPool),
		cls:      make(map[common.Address]CLPool),
		settlers: make(map[common.Address]Settler),
	}
}

func (h *mockVenueHost) Pair(addr common.Address) (PairPool, error) {
	if p, ok := h.pairs[addr]; ok {
		return p, nil
	}
	return nil, ErrUnknownPool
}

func (h *mockVenueHost) CL(addr common.Address) (CLPool, error) {
	if p, ok := h.cls[addr]; ok {
		return p, nil
	}
	return nil, ErrUnknownPool
}

func (h *mockVenueHost) Settler(addr common.Address) (Settler, error) {
	if s, ok := h.settlers[addr]; ok {
		return s, nil
	}
	return nil, ErrUnknownPool
}

// mockVault records claimable deposits without moving funds.
type mockVault struct {
	deposits map[common.Address]map[common.Address]*uint256.Int
}

func newMockVault() *mockVault {
	return &mockVault{deposits: make(map[common.Address]map[common.Address]*uint256.Int)}
}

func (v *mockVault) Deposit(_ StateDB, asset, recipient common.Address, amount *uint256.Int) error {
	if v.deposits[asset] == nil {
		v.deposits[asset] = make(map[common.Address]*uint256.Int)
	}
	if v.deposits[asset][recipient] == nil {
		v.deposits[asset][recipient] = uint256.NewInt(0)
	}
	v.deposits[asset][recipient].Add(v.deposits[asset][recipient], amount)
	return nil
}

func (v *mockVault) BatchDeposit(stateDB StateDB, asset common.Address, recipients []common.Address, amounts []*uint256.Int) error {
	for i, recipient := range recipients {
		if err := v.Deposit(stateDB, asset, recipient, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (v *mockVault) claimable(asset, recipient common.Address) *uint256.Int {
	if v.deposits[asset] == nil || v.deposits[asset][recipient] == nil {
		return uint256.NewInt(0)
	}
	return v.deposits[asset][recipient].Clone()
}

type mockSigTransfer struct {
	calls  int
	tokens *mockTokenRegistry
}

func (s *mockSigTransfer) PermitTransferFrom(owner, to common.Address, asset common.Address, amount *uint256.Int, payload []byte) error {
	s.calls++
	token, err := s.tokens.Token(asset)
	if err != nil {
		return err
	}
	return token.(*mockToken).Transfer(owner, to, amount)
}

// ============================================================================
// World
// ============================================================================

var (
	testCaller    = common.HexToAddress("0x00000000000000000000000000000000000ca11e")
	testPartner   = common.HexToAddress("0x0000000000000000000000000000000000Fa47e4")
	testProtocol  = common.HexToAddress("0x00000000000000000000000000000000000F0017")
	testAdmin     = common.HexToAddress("0x000000000000000000000000000000000000ad31")
	testTokenA    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testTokenB    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	testWNative   = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	testFactory   = common.HexToAddress("0x00000000000000000000000000000000000Fac10")
	testSettlerAt = common.HexToAddress("0x00000000000000000000000000000000005e7713")
)

// world is a self-contained in-memory swap environment.
type world struct {
	stateDB  *MockStateDB
	tokenA   *mockToken
	tokenB   *mockToken
	wnative  *mockWrappedNative
	tokens   *mockTokenRegistry
	venues   *mockVenueHost
	resolver *Resolver
	vault    *mockVault
	sig      *mockSigTransfer
	router   *Router
}

func newWorld(t *testing.T) *world {
	t.Helper()

	w := &world{
		stateDB: NewMockStateDB(),
		tokenA:  newMockToken(),
		tokenB:  newMockToken(),
		tokens:  &mockTokenRegistry{tokens: make(map[common.Address]Token)},
		venues:  newMockVenueHost(),
		vault:   newMockVault(),
	}
	w.wnative = &mockWrappedNative{mockToken: newMockToken(), addr: testWNative}
	w.tokens.add(testTokenA, w.tokenA)
	w.tokens.add(testTokenB, w.tokenB)
	w.tokens.add(testWNative, w.wnative)
	w.sig = &mockSigTransfer{tokens: w.tokens}
	w.resolver = NewResolver(memdb.New())

	r, err := NewRouter(&Config{
		Tokens:         w.tokens,
		Venues:         w.venues,
		Resolver:       w.resolver,
		SigTransfer:    w.sig,
		FeeVault:       w.vault,
		WNative:        w.wnative,
		ProtocolWallet: testProtocol,
		Admin:          testAdmin,
	})
	require.NoError(t, err)
	w.router = r
	return w
}

// addPairPool creates a constant-product pool and registers it with the venue
// host at a fixed address.
func (w *world) addPairPool(addr common.Address, token0Addr, token1Addr common.Address, reserve0, reserve1 uint64) *mockPairPool {
	t0 := w.mockTokenAt(token0Addr)
	t1 := w.mockTokenAt(token1Addr)
	pool := &mockPairPool{
		addr:     addr,
		token0:   t0,
		token1:   t1,
		addr0:    token0Addr,
		addr1:    token1Addr,
		reserve0: uint256.NewInt(reserve0),
		reserve1: uint256.NewInt(reserve1),
	}
	t0.mint(addr, reserve0)
	t1.mint(addr, reserve1)
	w.venues.pairs[addr] = pool
	return pool
}

// addCLPool derives the canonical address for the key and registers a
// fixed-rate pool there.
func (w *world) addCLPool(t *testing.T, key PairKey, rateNum, rateDen uint64, liquidity uint64) *mockCLPool {
	t.Helper()
	addr, err := w.resolver.TieredAddress(testFactory, key)
	require.NoError(t, err)
	pool := &mockCLPool{
		addr:    addr,
		token0:  w.mockTokenAt(key.Token0),
		token1:  w.mockTokenAt(key.Token1),
		rateNum: rateNum,
		rateDen: rateDen,
		engine:  w.router,
	}
	pool.token0.mint(addr, liquidity)
	pool.token1.mint(addr, liquidity)
	w.venues.cls[addr] = pool
	return pool
}

func (w *world) mockTokenAt(addr common.Address) *mockToken {
	switch tok := w.tokens.tokens[addr].(type) {
	case *mockToken:
		return tok
	case *mockWrappedNative:
		return tok.mockToken
	default:
		panic("unknown token mock")
	}
}

// registerTieredVenue registers resolver parameters for the CL factory.
func (w *world) registerTieredVenue() {
	w.resolver.Register(VenueParams{
		Factory:      testFactory,
		InitCodeHash: common.HexToHash("0x0102030405060708091011121314151617181920212223242526272829303132"),
		Scheme:       SchemeTiered,
	})
}

// fundCaller gives the caller a token balance and router allowance.
func (w *world) fundCaller(token *mockToken, amount uint64) {
	token.mint(testCaller, amount)
	token.Approve(testCaller, RouterAddress, uint256.NewInt(amount))
}
