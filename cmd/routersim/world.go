// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/spf13/viper"

	"github.com/luxfi/router/feevault"
	"github.com/luxfi/router/router"
)

// Fixed actors and assets of the simulated market.
var (
	simTrader   = common.HexToAddress("0x0000000000000000000000000000000000000100")
	simProtocol = common.HexToAddress("0x0000000000000000000000000000000000000200")
	simAdmin    = common.HexToAddress("0x0000000000000000000000000000000000000300")
	simTokenIn  = common.HexToAddress("0x0000000000000000000000000000000000001001")
	simTokenOut = common.HexToAddress("0x0000000000000000000000000000000000001002")
	simWrapped  = common.HexToAddress("0x0000000000000000000000000000000000001003")
	simPoolAddr = common.HexToAddress("0x0000000000000000000000000000000000002001")
	simFactory  = common.HexToAddress("0x0000000000000000000000000000000000003001")
)

// simStateDB is a map-backed account state.
type simStateDB struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
}

func newSimStateDB() *simStateDB {
	return &simStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
	}
}

func (s *simStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if s.storage[addr] == nil {
		return common.Hash{}
	}
	return s.storage[addr][key]
}

func (s *simStateDB) SetState(addr common.Address, key, value common.Hash) {
	if s.storage[addr] == nil {
		s.storage[addr] = make(map[common.Hash]common.Hash)
	}
	s.storage[addr][key] = value
}

func (s *simStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := s.balances[addr]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (s *simStateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	if s.balances[addr] == nil {
		s.balances[addr] = new(uint256.Int)
	}
	s.balances[addr].Add(s.balances[addr], amount)
}

func (s *simStateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	if s.balances[addr] == nil {
		s.balances[addr] = new(uint256.Int)
	}
	s.balances[addr].Sub(s.balances[addr], amount)
}

func (s *simStateDB) Exist(common.Address) bool    { return true }
func (s *simStateDB) CreateAccount(common.Address) {}

// simToken is a map-backed fungible token. Permits simply grant the requested
// allowance; the simulator has no signatures to verify.
type simToken struct {
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

var errSimTransfer = errors.New("routersim: insufficient balance or allowance")

func newSimToken() *simToken {
	return &simToken{
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (t *simToken) credit(owner common.Address, amount *uint256.Int) {
	if t.balances[owner] == nil {
		t.balances[owner] = new(uint256.Int)
	}
	t.balances[owner].Add(t.balances[owner], amount)
}

func (t *simToken) BalanceOf(owner common.Address) *uint256.Int {
	if bal, ok := t.balances[owner]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (t *simToken) Transfer(from, to common.Address, amount *uint256.Int) error {
	if t.BalanceOf(from).Lt(amount) {
		return errSimTransfer
	}
	t.balances[from].Sub(t.balances[from], amount)
	t.credit(to, amount)
	return nil
}

func (t *simToken) TransferFrom(spender, owner, to common.Address, amount *uint256.Int) error {
	allowance := t.allowanceOf(owner, spender)
	if allowance.Lt(amount) {
		return errSimTransfer
	}
	if err := t.Transfer(owner, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	t.allowances[owner][spender] = allowance
	return nil
}

func (t *simToken) allowanceOf(owner, spender common.Address) *uint256.Int {
	if t.allowances[owner] == nil {
		return new(uint256.Int)
	}
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

func (t *simToken) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = amount.Clone()
	return nil
}

func (t *simToken) Permit(owner, spender common.Address, value *uint256.Int, _ uint64, _ byte, _, _ common.Hash) error {
	return t.Approve(owner, spender, value)
}

func (t *simToken) PermitLegacy(holder, spender common.Address, _, _ uint64, allowed bool, _ byte, _, _ common.Hash) error {
	if !allowed {
		return t.Approve(holder, spender, new(uint256.Int))
	}
	return t.Approve(holder, spender, new(uint256.Int).SetAllOne())
}

type simWrappedNative struct {
	*simToken
	addr common.Address
}

func (w *simWrappedNative) Address() common.Address { return w.addr }

func (w *simWrappedNative) Deposit(to common.Address, amount *uint256.Int) error {
	w.credit(to, amount)
	return nil
}

func (w *simWrappedNative) Withdraw(from common.Address, amount *uint256.Int) error {
	if w.BalanceOf(from).Lt(amount) {
		return errSimTransfer
	}
	w.balances[from].Sub(w.balances[from], amount)
	return nil
}

type simRegistry map[common.Address]router.Token

func (r simRegistry) Token(asset common.Address) (router.Token, error) {
	if token, ok := r[asset]; ok {
		return token, nil
	}
	return nil, errors.New("routersim: unknown token")
}

// simPairPool pushes the requested outputs and syncs its reserves to its
// balances; the engine already computed and validated the trade amounts.
type simPairPool struct {
	addr           common.Address
	token0, token1 *simToken
	addr0, addr1   common.Address
	reserve0       *uint256.Int
	reserve1       *uint256.Int
}

func (p *simPairPool) Tokens() (common.Address, common.Address) {
	return p.addr0, p.addr1
}

func (p *simPairPool) GetReserves() (*uint256.Int, *uint256.Int) {
	return p.reserve0.Clone(), p.reserve1.Clone()
}

func (p *simPairPool) Swap(amount0Out, amount1Out *uint256.Int, to common.Address) error {
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
	p.reserve0 = p.token0.BalanceOf(p.addr)
	p.reserve1 = p.token1.BalanceOf(p.addr)
	return nil
}

type simVenueHost struct {
	pairs map[common.Address]router.PairPool
}

func (h *simVenueHost) Pair(addr common.Address) (router.PairPool, error) {
	if p, ok := h.pairs[addr]; ok {
		return p, nil
	}
	return nil, errors.New("routersim: unknown pool")
}

func (h *simVenueHost) CL(common.Address) (router.CLPool, error) {
	return nil, errors.New("routersim: no concentrated pools configured")
}

func (h *simVenueHost) Settler(common.Address) (router.Settler, error) {
	return nil, errors.New("routersim: no settlers configured")
}

// lazyPayer defers to the engine once it exists; the vault and the engine
// reference each other.
type lazyPayer struct {
	router *router.Router
}

func (p *lazyPayer) Pay(stateDB router.StateDB, asset, to common.Address, amount *uint256.Int) error {
	return p.router.Pay(stateDB, asset, to, amount)
}

// market is the assembled simulation environment.
type market struct {
	stateDB  *simStateDB
	tokenIn  *simToken
	tokenOut *simToken
	pool     *simPairPool
	vault    *feevault.Vault
	router   *router.Router
}

// newMarket builds tokens, one constant-product pool with the given reserves,
// the fee vault and the engine, and funds the trader.
func newMarket(reserveIn, reserveOut, traderFunds uint64) (*market, error) {
	m := &market{
		stateDB:  newSimStateDB(),
		tokenIn:  newSimToken(),
		tokenOut: newSimToken(),
	}
	wrapped := &simWrappedNative{simToken: newSimToken(), addr: simWrapped}
	tokens := simRegistry{
		simTokenIn:  m.tokenIn,
		simTokenOut: m.tokenOut,
		simWrapped:  wrapped,
	}

	m.pool = &simPairPool{
		addr:     simPoolAddr,
		token0:   m.tokenIn,
		token1:   m.tokenOut,
		addr0:    simTokenIn,
		addr1:    simTokenOut,
		reserve0: uint256.NewInt(reserveIn),
		reserve1: uint256.NewInt(reserveOut),
	}
	m.tokenIn.credit(simPoolAddr, uint256.NewInt(reserveIn))
	m.tokenOut.credit(simPoolAddr, uint256.NewInt(reserveOut))
	venues := &simVenueHost{pairs: map[common.Address]router.PairPool{simPoolAddr: m.pool}}

	payer := &lazyPayer{}
	m.vault = feevault.New(router.RouterAddress, payer)

	level := log.InfoLevel
	if viper.GetBool("verbose") {
		level = log.DebugLevel
	}
	r, err := router.NewRouter(&router.Config{
		Tokens:         tokens,
		Venues:         venues,
		Resolver:       router.NewResolver(memdb.New()),
		FeeVault:       m.vault,
		WNative:        wrapped,
		ProtocolWallet: simProtocol,
		Admin:          simAdmin,
		Logger:         log.NewTestLogger(level),
	})
	if err != nil {
		return nil, err
	}
	payer.router = r
	m.router = r

	m.tokenIn.credit(simTrader, uint256.NewInt(traderFunds))
	m.tokenIn.Approve(simTrader, router.RouterAddress, uint256.NewInt(traderFunds))
	return m, nil
}

// parsePartner reads an optional partner address flag.
func parsePartner(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("routersim: --partner is not a hex address")
	}
	return common.HexToAddress(s), nil
}

// quoteOutput mirrors the engine's forward pricing for display purposes.
func quoteOutput(amountIn, reserveIn, reserveOut uint64) *big.Int {
	in := new(big.Int).SetUint64(amountIn)
	num := new(big.Int).Mul(in, big.NewInt(9970))
	num.Mul(num, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), big.NewInt(10000))
	den.Add(den, new(big.Int).Mul(in, big.NewInt(9970)))
	return num.Div(num, den)
}
