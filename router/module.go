// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/router/registry"
	"github.com/luxfi/router/rfq"
)

// Function selectors (first 4 bytes of keccak256 of the operation signature).
var (
	SelectorSwapOnPairs        = registry.Selector{0x5f, 0x3b, 0xd9, 0x21} // swapOnPairs(...)
	SelectorBuyOnPairs         = registry.Selector{0x8a, 0x1e, 0x44, 0x7c} // buyOnPairs(...)
	SelectorSwapOnConcentrated = registry.Selector{0xc4, 0x92, 0x0a, 0x15} // swapOnConcentrated(...)
	SelectorBuyOnConcentrated  = registry.Selector{0x2d, 0x76, 0xb8, 0xe3} // buyOnConcentrated(...)
	SelectorSwapOnSettler      = registry.Selector{0x91, 0x05, 0x6f, 0xd8} // swapOnSettler(...)
	SelectorBuyOnSettler       = registry.Selector{0x47, 0xe1, 0x23, 0x9a} // buyOnSettler(...)
	SelectorFillOrders         = registry.Selector{0xb3, 0x58, 0x17, 0x4e} // fillOrders(...)
	SelectorSetPaused          = registry.Selector{0x16, 0xc3, 0x8b, 0x90} // setPaused(bool)
	SelectorPaused             = registry.Selector{0x5c, 0x97, 0x5a, 0xbb} // paused()
	SelectorTransferAdmin      = registry.Selector{0x75, 0x82, 0x9d, 0x66} // transferAdmin(address)
)

var (
	errUnknownSelector = errors.New("router: unknown operation selector")
	errInvalidInput    = errors.New("router: malformed call input")
)

// opHandler executes one dispatched operation over its already-stripped
// argument bytes.
type opHandler func(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error)

// Dispatcher is the engine's call-style front door: raw input in, selector
// dispatch through the registry, packed settlement result out.
type Dispatcher struct {
	router *Router
	ops    *registry.Registry[opHandler]
}

// NewDispatcher builds the dispatch table for a router instance.
func NewDispatcher(r *Router) (*Dispatcher, error) {
	d := &Dispatcher{router: r, ops: registry.New[opHandler]()}
	for _, op := range []struct {
		sel     registry.Selector
		name    string
		handler opHandler
	}{
		{SelectorSwapOnPairs, "swapOnPairs", d.swapOnPairs},
		{SelectorBuyOnPairs, "buyOnPairs", d.buyOnPairs},
		{SelectorSwapOnConcentrated, "swapOnConcentrated", d.swapOnConcentrated},
		{SelectorBuyOnConcentrated, "buyOnConcentrated", d.buyOnConcentrated},
		{SelectorSwapOnSettler, "swapOnSettler", d.swapOnSettler},
		{SelectorBuyOnSettler, "buyOnSettler", d.buyOnSettler},
		{SelectorFillOrders, "fillOrders", d.fillOrders},
		{SelectorSetPaused, "setPaused", d.setPaused},
		{SelectorPaused, "paused", d.paused},
		{SelectorTransferAdmin, "transferAdmin", d.transferAdmin},
	} {
		if err := d.ops.Register(op.sel, op.name, op.handler); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Run executes one raw call against the engine.
func (d *Dispatcher) Run(stateDB StateDB, caller common.Address, value *uint256.Int, input []byte) ([]byte, error) {
	sel, ok := registry.SelectorFromInput(input)
	if !ok {
		return nil, errInvalidInput
	}
	handler, ok := d.ops.Lookup(sel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownSelector, sel)
	}
	return handler(stateDB, caller, value, input[4:])
}

// ============================================================================
// Argument codec
// ============================================================================

const wordSize = 32

func argWord(args []byte, i int) ([]byte, error) {
	if len(args) < (i+1)*wordSize {
		return nil, errInvalidInput
	}
	return args[i*wordSize : (i+1)*wordSize], nil
}

func argAddress(args []byte, i int) (common.Address, error) {
	w, err := argWord(args, i)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w[12:]), nil
}

func argUint256(args []byte, i int) (*uint256.Int, error) {
	w, err := argWord(args, i)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(w), nil
}

// decodeRequestHead reads the 7-word request header shared by every swap
// operation: src, dest, fromAmount, toAmount, expectedAmount, beneficiary,
// fee word.
func decodeRequestHead(args []byte) (*SwapRequest, *uint256.Int, error) {
	if len(args) < 7*wordSize {
		return nil, nil, errInvalidInput
	}
	src, _ := argAddress(args, 0)
	dest, _ := argAddress(args, 1)
	fromAmount, _ := argUint256(args, 2)
	toAmount, _ := argUint256(args, 3)
	expected, _ := argUint256(args, 4)
	beneficiary, _ := argAddress(args, 5)
	feeWord, _ := argUint256(args, 6)
	req := &SwapRequest{
		SrcAsset:       Asset{Address: src},
		DestAsset:      Asset{Address: dest},
		FromAmount:     fromAmount,
		ToAmount:       toAmount,
		ExpectedAmount: expected,
		Beneficiary:    beneficiary,
	}
	return req, feeWord, nil
}

func readUint16Chunk(data []byte) ([]byte, []byte, error) {
	if len(data) < 2 {
		return nil, nil, errInvalidInput
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return nil, nil, errInvalidInput
	}
	return data[:n], data[n:], nil
}

const pairHopWireLen = 60

func decodePairHops(data []byte) ([]PairHop, []byte, error) {
	if len(data) < 2 {
		return nil, nil, errInvalidInput
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n*pairHopWireLen {
		return nil, nil, errInvalidInput
	}
	hops := make([]PairHop, n)
	for i := range hops {
		hops[i].Pool = common.BytesToAddress(data[:20])
		hops[i].TokenIn = common.BytesToAddress(data[20:40])
		hops[i].TokenOut = common.BytesToAddress(data[40:60])
		data = data[pairHopWireLen:]
	}
	return hops, data, nil
}

const clHopWireLen = 45

func decodeCLHops(data []byte) ([]CLHop, []byte, error) {
	if len(data) < 2 {
		return nil, nil, errInvalidInput
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n*clHopWireLen {
		return nil, nil, errInvalidInput
	}
	hops := make([]CLHop, n)
	for i := range hops {
		hops[i].Key.Token0 = common.BytesToAddress(data[:20])
		hops[i].Key.Token1 = common.BytesToAddress(data[20:40])
		hops[i].Key.Fee = binary.BigEndian.Uint32(data[40:44])
		hops[i].ZeroForOne = data[44] == 1
		data = data[clHopWireLen:]
	}
	return hops, data, nil
}

const orderWireLen = 160

func decodeOrders(data []byte) ([]rfq.Order, [][]byte, []byte, error) {
	if len(data) < 2 {
		return nil, nil, nil, errInvalidInput
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	orders := make([]rfq.Order, n)
	for i := range orders {
		if len(data) < orderWireLen {
			return nil, nil, nil, errInvalidInput
		}
		orders[i].Maker = common.BytesToAddress(data[:20])
		orders[i].Taker = common.BytesToAddress(data[20:40])
		orders[i].MakerAsset = common.BytesToAddress(data[40:60])
		orders[i].TakerAsset = common.BytesToAddress(data[60:80])
		orders[i].MakerAmount = new(uint256.Int).SetBytes(data[80:112])
		orders[i].TakerAmount = new(uint256.Int).SetBytes(data[112:144])
		orders[i].Expiry = binary.BigEndian.Uint64(data[144:152])
		orders[i].Nonce = binary.BigEndian.Uint64(data[152:160])
		data = data[orderWireLen:]
	}
	sigs := make([][]byte, n)
	for i := range sigs {
		var sig []byte
		var err error
		sig, data, err = readUint16Chunk(data)
		if err != nil {
			return nil, nil, nil, err
		}
		sigs[i] = sig
	}
	return orders, sigs, data, nil
}

// encodeResult packs a settlement result as four 32-byte words: spent,
// received, partner fee, protocol fee.
func encodeResult(res *SettlementResult) []byte {
	out := make([]byte, 4*wordSize)
	for i, v := range []*uint256.Int{res.Spent, res.Received, res.PartnerFee, res.ProtocolFee} {
		if v != nil {
			w := v.Bytes32()
			copy(out[i*wordSize:], w[:])
		}
	}
	return out
}

// ============================================================================
// Operation handlers
// ============================================================================

func (d *Dispatcher) swapOnPairs(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error) {
	req, feeWord, err := decodeRequestHead(args)
	if err != nil {
		return nil, err
	}
	factory, err := argAddress(args, 7)
	if err != nil {
		return nil, err
	}
	hops, rest, err := decodePairHops(args[8*wordSize:])
	if err != nil {
		return nil, err
	}
	permit, _, err := readUint16Chunk(rest)
	if err != nil {
		return nil, err
	}
	res, err := d.router.SwapOnPairs(stateDB, caller, value, req, feeWord, permit, factory, hops)
	if err != nil {
		return nil, err
	}
	return encodeResult(res), nil
}

func (d *Dispatcher) buyOnPairs(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error) {
	req, feeWord, err := decodeRequestHead(args)
	if err != nil {
		return nil, err
	}
	factory, err := argAddress(args, 7)
	if err != nil {
		return nil, err
	}
	hops, rest, err := decodePairHops(args[8*wordSize:])
	if err != nil {
		return nil, err
	}
	permit, _, err := readUint16Chunk(rest)
	if err != nil {
		return nil, err
	}
	res, err := d.router.BuyOnPairs(stateDB, caller, value, req, feeWord, permit, factory, hops)
	if err != nil {
		return nil, err
	}
	return encodeResult(res), nil
}

func (d *Dispatcher) swapOnConcentrated(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error) {
	req, feeWord, err := decodeRequestHead(args)
	if err != nil {
		return nil, err
	}
	factory, err := argAddress(args, 7)
	if err != nil {
		return nil, err
	}
	hops, rest, err := decodeCLHops(args[8*wordSize:])
	if err != nil {
		return nil, err
	}
	permit, _, err := readUint16Chunk(rest)
	if err != nil {
		return nil, err
	}
	res, err := d.router.SwapOnConcentrated(stateDB, caller, value, req, feeWord, permit, factory, hops)
	if err != nil {
		return nil, err
	}
	return encodeResult(res), nil
}

func (d *Dispatcher) buyOnConcentrated(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error) {
	req, feeWord, err := decodeRequestHead(args)
	if err != nil {
		return nil, err
	}
	factory, err := argAddress(args, 7)
	if err != nil {
		return nil, err
	}
	hops, rest, err := decodeCLHops(args[8*wordSize:])
	if err != nil {
		return nil, err
	}
	permit, _, err := readUint16Chunk(rest)
	if err != nil {
		return nil, err
	}
	res, err := d.router.BuyOnConcentrated(stateDB, caller, value, req, feeWord, permit, factory, hops)
	if err != nil {
		return nil, err
	}
	return encodeResult(res), nil
}

func (d *Dispatcher) swapOnSettler(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error) {
	req, feeWord, err := decodeRequestHead(args)
	if err != nil {
		return nil, err
	}
	settler, err := argAddress(args, 7)
	if err != nil {
		return nil, err
	}
	payload, rest, err := readUint16Chunk(args[8*wordSize:])
	if err != nil {
		return nil, err
	}
	permit, _, err := readUint16Chunk(rest)
	if err != nil {
		return nil, err
	}
	res, err := d.router.SwapOnSettler(stateDB, caller, value, req, feeWord, permit, settler, payload)
	if err != nil {
		return nil, err
	}
	return encodeResult(res), nil
}

func (d *Dispatcher) buyOnSettler(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error) {
	req, feeWord, err := decodeRequestHead(args)
	if err != nil {
		return nil, err
	}
	settler, err := argAddress(args, 7)
	if err != nil {
		return nil, err
	}
	payload, rest, err := readUint16Chunk(args[8*wordSize:])
	if err != nil {
		return nil, err
	}
	permit, _, err := readUint16Chunk(rest)
	if err != nil {
		return nil, err
	}
	res, err := d.router.BuyOnSettler(stateDB, caller, value, req, feeWord, permit, settler, payload)
	if err != nil {
		return nil, err
	}
	return encodeResult(res), nil
}

func (d *Dispatcher) fillOrders(stateDB StateDB, caller common.Address, value *uint256.Int, args []byte) ([]byte, error) {
	req, feeWord, err := decodeRequestHead(args)
	if err != nil {
		return nil, err
	}
	rest := args[7*wordSize:]
	if len(rest) < 8 {
		return nil, errInvalidInput
	}
	now := binary.BigEndian.Uint64(rest[:8])
	orders, sigs, rest, err := decodeOrders(rest[8:])
	if err != nil {
		return nil, err
	}
	permit, _, err := readUint16Chunk(rest)
	if err != nil {
		return nil, err
	}
	res, err := d.router.FillOrders(stateDB, caller, value, req, feeWord, permit, orders, sigs, now)
	if err != nil {
		return nil, err
	}
	return encodeResult(res), nil
}

func (d *Dispatcher) setPaused(stateDB StateDB, caller common.Address, _ *uint256.Int, args []byte) ([]byte, error) {
	w, err := argWord(args, 0)
	if err != nil {
		return nil, err
	}
	if err := d.router.SetPaused(stateDB, caller, w[31] != 0); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Dispatcher) paused(stateDB StateDB, _ common.Address, _ *uint256.Int, _ []byte) ([]byte, error) {
	out := make([]byte, wordSize)
	if d.router.Paused(stateDB) {
		out[31] = 1
	}
	return out, nil
}

func (d *Dispatcher) transferAdmin(stateDB StateDB, caller common.Address, _ *uint256.Int, args []byte) ([]byte, error) {
	newAdmin, err := argAddress(args, 0)
	if err != nil {
		return nil, err
	}
	if err := d.router.TransferAdmin(stateDB, caller, newAdmin); err != nil {
		return nil, err
	}
	return nil, nil
}
