// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "routersim",
	Short: "Simulate swap settlements against an in-memory market",
	Long: `routersim builds a self-contained market (tokens, a constant-product
pool, a fee vault) and settles swaps through the routing engine, printing the
resulting balances, fees and surplus splits.

Examples:
  routersim swap --amount-in 1000 --reserve-in 1000000 --reserve-out 1000000
  routersim swap --amount-in 1000 --fee-bps 50 --partner 0xf0f0...
  routersim buy --amount-out 996 --max-in 1100`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetEnvPrefix("routersim")
	viper.AutomaticEnv()
}
