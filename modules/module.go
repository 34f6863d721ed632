// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"github.com/luxfi/router/router"
)

// RouterName is the configuration key for the swap settlement engine.
const RouterName = "router"

// RouterModule describes the settlement engine deployed at the markets
// range. MakeContract wires a fresh engine to the host's collaborators and
// returns its dispatch front door.
var RouterModule = Module{
	Name:    RouterName,
	Address: router.RouterAddress,
	MakeContract: func(cfg *router.Config) (Contract, error) {
		r, err := router.NewRouter(cfg)
		if err != nil {
			return nil, err
		}
		return router.NewDispatcher(r)
	},
}

func init() {
	MustRegister(RouterModule)
}
