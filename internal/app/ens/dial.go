package ens

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

type NetworkConfig struct {
	Name   string
	RPCURL string
}

// DialNetworks connects every configured network, preserving order.
func DialNetworks(ctx context.Context, configs []NetworkConfig) ([]Network, func(), error) {
	var clients []*ethclient.Client
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}

	networks := make([]Network, 0, len(configs))
	for _, cfg := range configs {
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.Name, err)
		}
		clients = append(clients, client)
		networks = append(networks, Network{Name: cfg.Name, Client: client})
	}
	return networks, closeAll, nil
}
