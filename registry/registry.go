// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry maps 4-byte operation selectors to handlers. Handlers are
// registered once at configuration time; iteration order is deterministic so
// dispatch tables hash and log identically across runs.
package registry

import (
	"bytes"
	"fmt"
	"sort"
)

// Selector is the leading 4 bytes of a call's input, identifying the
// operation.
type Selector [4]byte

func (s Selector) String() string {
	return fmt.Sprintf("0x%02x%02x%02x%02x", s[0], s[1], s[2], s[3])
}

// SelectorFromInput extracts the selector from raw call input.
func SelectorFromInput(input []byte) (Selector, bool) {
	var s Selector
	if len(input) < len(s) {
		return s, false
	}
	copy(s[:], input)
	return s, true
}

type entry[H any] struct {
	name    string
	handler H
}

// Registry is a selector-keyed dispatch table. The zero value is not usable;
// construct with New.
type Registry[H any] struct {
	entries map[Selector]entry[H]
}

func New[H any]() *Registry[H] {
	return &Registry[H]{entries: make(map[Selector]entry[H])}
}

// Register binds a selector to a named handler. Registering the same
// selector twice is a configuration bug and fails loudly.
func (r *Registry[H]) Register(sel Selector, name string, handler H) error {
	if existing, ok := r.entries[sel]; ok {
		return fmt.Errorf("registry: selector %s already registered to %q", sel, existing.name)
	}
	r.entries[sel] = entry[H]{name: name, handler: handler}
	return nil
}

// MustRegister is Register for static dispatch tables built at init time.
func (r *Registry[H]) MustRegister(sel Selector, name string, handler H) {
	if err := r.Register(sel, name, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the handler bound to a selector.
func (r *Registry[H]) Lookup(sel Selector) (H, bool) {
	e, ok := r.entries[sel]
	return e.handler, ok
}

// Name returns the registered name for a selector, for logs and errors.
func (r *Registry[H]) Name(sel Selector) string {
	if e, ok := r.entries[sel]; ok {
		return e.name
	}
	return ""
}

// Selectors lists all registered selectors in byte order.
func (r *Registry[H]) Selectors() []Selector {
	sels := make([]Selector, 0, len(r.entries))
	for sel := range r.entries {
		sels = append(sels, sel)
	}
	sort.Slice(sels, func(i, j int) bool {
		return bytes.Compare(sels[i][:], sels[j][:]) < 0
	})
	return sels
}

// Len reports the number of registered operations.
func (r *Registry[H]) Len() int {
	return len(r.entries)
}
