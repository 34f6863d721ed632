// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"errors"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/router/rfq"
)

// InBlacklistFunc reports whether fee-taking is disallowed for an asset.
type InBlacklistFunc func(asset common.Address) bool

// Config holds the engine's collaborators and protocol parameters.
type Config struct {
	Tokens         TokenRegistry
	Venues         VenueHost
	Resolver       *Resolver
	SigTransfer    SignatureTransfer
	FeeVault       FeeVault
	WNative        WrappedNative
	ProtocolWallet common.Address
	Admin          common.Address
	InBlacklist    InBlacklistFunc
	Logger         log.Logger
}

// validate checks that all essential collaborators are provided.
func (c *Config) validate() error {
	if c.Tokens == nil {
		return errors.New("token registry is required")
	}
	if c.Venues == nil {
		return errors.New("venue host is required")
	}
	if c.Resolver == nil {
		return errors.New("pool resolver is required")
	}
	if c.FeeVault == nil {
		return errors.New("fee vault is required")
	}
	if c.ProtocolWallet == (common.Address{}) {
		return errors.New("protocol wallet is required")
	}
	if c.Admin == (common.Address{}) {
		return errors.New("admin is required")
	}
	return nil
}

// Router is the settlement engine. All entrypoints are synchronous; the only
// nested call into the engine is the concentrated-liquidity pay callback,
// which is verified against the resolver before it moves funds.
type Router struct {
	tokens         TokenRegistry
	venues         VenueHost
	resolver       *Resolver
	sigTransfer    SignatureTransfer
	feeVault       FeeVault
	wnative        WrappedNative
	protocolWallet common.Address
	admin          common.Address
	inBlacklist    InBlacklistFunc

	// callbackDepth counts in-flight CL swaps; PayCallback rejects callers
	// arriving outside a swap the engine itself initiated.
	callbackDepth int

	// callbackAmountIn is set by the innermost exact-output callback frame
	// with the input actually pulled from the payer.
	callbackAmountIn *uint256.Int

	// orders tracks aggregate partial fills per signed order.
	orders *rfq.Ledger

	log log.Logger
}

// NewRouter constructs the engine from its configuration.
func NewRouter(cfg *Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	inBlacklist := cfg.InBlacklist
	if inBlacklist == nil {
		inBlacklist = func(common.Address) bool { return false }
	}

	return &Router{
		tokens:         cfg.Tokens,
		venues:         cfg.Venues,
		resolver:       cfg.Resolver,
		sigTransfer:    cfg.SigTransfer,
		feeVault:       cfg.FeeVault,
		wnative:        cfg.WNative,
		protocolWallet: cfg.ProtocolWallet,
		admin:          cfg.Admin,
		inBlacklist:    inBlacklist,
		orders:         rfq.NewLedger(RouterAddress),
		log:            logger,
	}, nil
}
