// Package ens resolves ENS names to addresses across a fixed, ordered list of
// networks.
package ens

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/zkemail/paytox/pkg/logger"
)

// RegistryAddress is the ENS registry, deployed at the same address on mainnet and sepolia.
var RegistryAddress = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

var (
	resolverSelector = selector("resolver(bytes32)")
	addrSelector     = selector("addr(bytes32)")
)

var errNotFound = errors.New("name not registered")

type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Network struct {
	Name   string
	Client ChainReader
}

type Resolver struct {
	networks []Network
	registry common.Address
	log      *logger.Logger
}

func NewResolver(networks []Network, l *logger.Logger) *Resolver {
	return &Resolver{
		networks: networks,
		registry: RegistryAddress,
		log:      logger.OrDefault(l).Named("ens"),
	}
}

// Resolve tries each network in order and returns the first address found.
// Lookup failures on one network are logged and the next one is tried; a name
// nobody resolves yields nil without error.
func (r *Resolver) Resolve(ctx context.Context, name string) (*common.Address, error) {
	name = Normalize(name)
	if name == "" {
		return nil, nil
	}
	node := Namehash(name)

	for _, n := range r.networks {
		addr, err := r.resolveOn(ctx, n, node)
		if err == nil {
			r.log.Debugf("Resolved %s on %s to %s", name, n.Name, addr.Hex())
			return &addr, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, errNotFound) {
			r.log.Warnf("ENS lookup of %s on %s failed: %v", name, n.Name, err)
		}
	}
	return nil, nil
}

func (r *Resolver) resolveOn(ctx context.Context, n Network, node common.Hash) (common.Address, error) {
	resolver, err := r.callAddress(ctx, n, r.registry, resolverSelector, node)
	if err != nil {
		return common.Address{}, fmt.Errorf("registry resolver(): %w", err)
	}
	if resolver == (common.Address{}) {
		return common.Address{}, errNotFound
	}

	addr, err := r.callAddress(ctx, n, resolver, addrSelector, node)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolver addr(): %w", err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, errNotFound
	}
	return addr, nil
}

func (r *Resolver) callAddress(ctx context.Context, n Network, to common.Address, sel []byte, node common.Hash) (common.Address, error) {
	data := make([]byte, 0, 36)
	data = append(data, sel...)
	data = append(data, node.Bytes()...)

	out, err := n.Client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, nil
	}
	if len(out) < 32 {
		return common.Address{}, fmt.Errorf("short return data (%d bytes)", len(out))
	}
	return common.BytesToAddress(out[12:32]), nil
}

// ResolveTarget accepts a hex address or an ENS name. Addresses come back
// checksummed; anything else is looked up.
func (r *Resolver) ResolveTarget(ctx context.Context, input string) (*common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if common.IsHexAddress(input) {
		addr := common.HexToAddress(input)
		return &addr, nil
	}
	if !strings.Contains(input, ".") {
		return nil, nil
	}
	return r.Resolve(ctx, input)
}

// Balance reads the balance on the first configured network.
func (r *Resolver) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	if len(r.networks) == 0 {
		return nil, errors.New("no networks configured")
	}
	return r.networks[0].Client.BalanceAt(ctx, addr, nil)
}
