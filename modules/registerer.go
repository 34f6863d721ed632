// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps a deterministic catalog of the settlement engines
// deployed at reserved addresses, so hosts can discover and construct them
// without hard-coding addresses at every integration point.
package modules

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/router/router"
)

// Contract is the call surface every registered engine exposes to its host.
type Contract interface {
	Run(stateDB router.StateDB, caller common.Address, value *uint256.Int, input []byte) ([]byte, error)
}

// Module binds a name to a reserved address and a constructor for the
// engine living there.
type Module struct {
	// Name identifies the module in configuration and tooling.
	Name string

	// Address is the reserved address the engine is reachable at.
	Address common.Address

	// MakeContract builds a fresh engine instance wired to the host's
	// collaborators.
	MakeContract func(cfg *router.Config) (Contract, error)
}

type moduleArray []Module

func (m moduleArray) Len() int      { return len(m) }
func (m moduleArray) Swap(i, j int) { m[i], m[j] = m[j], m[i] }
func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address[:], m[j].Address[:]) < 0
}

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var (
	// registeredModules is a list of Module to preserve order
	// for deterministic iteration
	registeredModules = make([]Module, 0)

	// Reserved address ranges for settlement and market engines.
	//
	// HIGH-BYTE RANGE (legacy format: 0xXX00...0000):
	// 0x0400-0x04FF: Exchange engines (legacy deployments)
	//
	// LOW-BYTE RANGE (EIP-collision-free: 0x0000...XXXX):
	// 0x9000-0x9FFF: Markets (routing, order settlement, fee vaults)
	reservedRanges = []AddressRange{
		// Exchange engines, legacy (0x0400-0x04FF)
		{
			Start: common.HexToAddress("0x0400000000000000000000000000000000000000"),
			End:   common.HexToAddress("0x04000000000000000000000000000000000000ff"),
		},
		// Markets (0x0..9000 - 0x0..9FFF)
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000009000"),
			End:   common.HexToAddress("0x0000000000000000000000000000000000009fff"),
		},
	}
)

// ReservedAddress returns true if [addr] is in a reserved range for engines.
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}

	return false
}

// RegisterModule registers an engine module at its reserved address.
func RegisterModule(stm Module) error {
	address := stm.Address
	name := stm.Name

	if address == BlackholeAddr {
		return fmt.Errorf("address %s overlaps with blackhole address", address)
	}
	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}

	for _, registeredModule := range registeredModules {
		if registeredModule.Name == name {
			return fmt.Errorf("name %s already used by an engine module", name)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by an engine module", address)
		}
	}
	// sort by address to ensure deterministic iteration
	registeredModules = insertSortedByAddress(registeredModules, stm)
	return nil
}

// MustRegister is RegisterModule for init-time catalogs.
func MustRegister(stm Module) {
	if err := RegisterModule(stm); err != nil {
		panic(err)
	}
}

func ModuleByAddress(address common.Address) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

func ModuleByName(name string) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.Name == name {
			return stm, true
		}
	}
	return Module{}, false
}

// RegisteredModules returns the catalog in address order.
func RegisteredModules() []Module {
	out := make([]Module, len(registeredModules))
	copy(out, registeredModules)
	return out
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Sort(moduleArray(data))
	return data
}
