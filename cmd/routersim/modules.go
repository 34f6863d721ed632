// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/luxfi/router/modules"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the registered engine modules and their reserved addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		bold := color.New(color.Bold)
		bold.Println("Registered engine modules")
		for _, m := range modules.RegisteredModules() {
			fmt.Printf("  %-12s %s\n", m.Name, m.Address.Hex())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
