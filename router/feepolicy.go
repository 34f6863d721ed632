// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Bit positions inside the packed partner-and-fee word. The top 160 bits hold
// the partner address; the low 16 bits hold the fee percentage in basis
// points, masked to 14 bits.
const (
	feePolicyBitTakeSurplus   = 95
	feePolicyBitReferral      = 94
	feePolicyBitSkipBlacklist = 93
	feePolicyBitCapSurplus    = 92
	feePolicyBitDirect        = 91
	feePolicyBitUserSurplus   = 90

	feePolicyFeeMask = 0x3fff
)

// FeePolicy describes how the fee and surplus engine splits a settlement.
// A fixed FeeBps takes precedence over the surplus-based policies; Referral
// and TakeSurplus are only consulted when FeeBps is zero.
type FeePolicy struct {
	// Partner receives the partner share. The zero address means no partner.
	Partner common.Address

	// FeeBps is a fixed fee on the realized amount, clamped to MaxFeeBps.
	FeeBps uint16

	// CapSurplus clamps recognized surplus to 1% of the quoted amount.
	CapSurplus bool

	// SkipBlacklist takes fees even when the settled asset is blacklisted.
	SkipBlacklist bool

	// TakeSurplus splits recognized surplus 50/50 protocol/partner.
	TakeSurplus bool

	// Referral splits recognized surplus 50% protocol, 25% partner; the
	// remaining 25% stays with the beneficiary.
	Referral bool

	// DirectTransfer pays fee shares straight to their recipients instead of
	// depositing into the fee vault.
	DirectTransfer bool

	// UserSurplus reassigns the partner's surplus half to the beneficiary and
	// forces a direct transfer of the protocol half. Only meaningful together
	// with TakeSurplus.
	UserSurplus bool
}

// HasPartner returns true if a partner address is set.
func (p FeePolicy) HasPartner() bool {
	return p.Partner != (common.Address{})
}

// clampedFeeBps returns the fixed fee rate after the protocol ceiling.
func (p FeePolicy) clampedFeeBps() uint64 {
	if p.FeeBps > MaxFeeBps {
		return MaxFeeBps
	}
	return uint64(p.FeeBps)
}

// wordBit reports whether bit n of the 256-bit word is set. uint256.Int is a
// little-endian array of four uint64 limbs.
func wordBit(word *uint256.Int, n uint) bool {
	return word[n/64]>>(n%64)&1 == 1
}

// setWordBit sets bit n of the 256-bit word.
func setWordBit(word *uint256.Int, n uint) {
	word[n/64] |= 1 << (n % 64)
}

// ParseFeePolicy unpacks the wire-format partner-and-fee word. A nil word is
// the empty policy.
func ParseFeePolicy(word *uint256.Int) FeePolicy {
	if word == nil {
		return FeePolicy{}
	}
	var buf [32]byte
	word.WriteToArray32(&buf)

	return FeePolicy{
		Partner:        common.BytesToAddress(buf[0:20]),
		FeeBps:         uint16(word.Uint64() & feePolicyFeeMask),
		TakeSurplus:    wordBit(word, feePolicyBitTakeSurplus),
		Referral:       wordBit(word, feePolicyBitReferral),
		SkipBlacklist:  wordBit(word, feePolicyBitSkipBlacklist),
		CapSurplus:     wordBit(word, feePolicyBitCapSurplus),
		DirectTransfer: wordBit(word, feePolicyBitDirect),
		UserSurplus:    wordBit(word, feePolicyBitUserSurplus),
	}
}

// Pack encodes the policy back into the wire-format word. Packing then
// parsing round-trips every field, with FeeBps masked to 14 bits.
func (p FeePolicy) Pack() *uint256.Int {
	var buf [32]byte
	copy(buf[0:20], p.Partner.Bytes())
	word := new(uint256.Int).SetBytes32(buf[:])

	word.Or(word, uint256.NewInt(uint64(p.FeeBps)&feePolicyFeeMask))
	for _, f := range []struct {
		set bool
		bit uint
	}{
		{p.TakeSurplus, feePolicyBitTakeSurplus},
		{p.Referral, feePolicyBitReferral},
		{p.SkipBlacklist, feePolicyBitSkipBlacklist},
		{p.CapSurplus, feePolicyBitCapSurplus},
		{p.DirectTransfer, feePolicyBitDirect},
		{p.UserSurplus, feePolicyBitUserSurplus},
	} {
		if f.set {
			setWordBit(word, f.bit)
		}
	}
	return word
}
