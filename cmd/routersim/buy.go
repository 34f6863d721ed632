// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luxfi/router/router"
)

var buyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Settle an exact-output swap through the constant-product pool",
	Long: `Buy an exact output from the simulated pool, spending at most --max-in.
The unspent remainder refunds through the fee engine; with --quoted above
the realized input the refund carries recognized surplus.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
	RunE: runBuy,
}

func init() {
	rootCmd.AddCommand(buyCmd)
	flags := buyCmd.Flags()
	flags.Uint64("reserve-in", 1_000_000, "pool reserve of the input token")
	flags.Uint64("reserve-out", 1_000_000, "pool reserve of the output token")
	flags.Uint64("amount-out", 996, "exact output amount to buy")
	flags.Uint64("max-in", 1100, "maximum input to spend")
	flags.Uint64("quoted", 0, "quoted input for surplus accounting (0 = max-in)")
	flags.Uint64("fee-bps", 0, "fixed fee in basis points (requires --partner)")
	flags.String("partner", "", "partner address receiving the partner fee share")
	flags.Bool("direct", false, "pay fees by direct transfer instead of vault claims")
	flags.Bool("take-surplus", false, "split recognized surplus between protocol and partner")
}

func runBuy(cmd *cobra.Command, _ []string) error {
	maxIn := viper.GetUint64("max-in")

	m, err := newMarket(viper.GetUint64("reserve-in"), viper.GetUint64("reserve-out"), maxIn)
	if err != nil {
		return err
	}
	partner, err := parsePartner(viper.GetString("partner"))
	if err != nil {
		return err
	}

	quoted := viper.GetUint64("quoted")
	if quoted == 0 {
		quoted = maxIn
	}

	policy := router.FeePolicy{
		Partner:        partner,
		FeeBps:         uint16(viper.GetUint64("fee-bps")),
		DirectTransfer: viper.GetBool("direct"),
		TakeSurplus:    viper.GetBool("take-surplus"),
	}
	req := &router.SwapRequest{
		SrcAsset:       router.Asset{Address: simTokenIn},
		DestAsset:      router.Asset{Address: simTokenOut},
		FromAmount:     uint256.NewInt(maxIn),
		ToAmount:       uint256.NewInt(viper.GetUint64("amount-out")),
		ExpectedAmount: uint256.NewInt(quoted),
	}
	path := []router.PairHop{{Pool: simPoolAddr, TokenIn: simTokenIn, TokenOut: simTokenOut}}

	res, err := m.router.BuyOnPairs(m.stateDB, simTrader, nil, req, policy.Pack(), nil, simFactory, path)
	if err != nil {
		return err
	}
	printSettlement(m, res, quoted, partner, simTokenIn)
	return nil
}
