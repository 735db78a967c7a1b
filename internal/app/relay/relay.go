// Package relay submits proofs on-chain through a gas-sponsored smart account.
// The entrypoint contract encodes the proof, the sponsor service wraps the
// call in a user operation and the bundler reports its receipt.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/zkemail/paytox/internal/app/pipeline"
	"github.com/zkemail/paytox/pkg/logger"
)

const (
	DefaultReceiptTimeout = 60 * time.Second
	DefaultPollInterval   = 2 * time.Second
)

var ErrNoEntrypoint = errors.New("no entrypoint contract configured")

// ContractCaller is the read side of an Ethereum client.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RPCCaller is satisfied by *rpc.Client.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type UserOperationSender interface {
	SendUserOperation(ctx context.Context, in UserOperationRequest) (*UserOperationResponse, error)
}

type Config struct {
	ChainID        uint64
	RPCURL         string
	BundlerURL     string
	SponsorURL     string
	SponsorAPIKey  string
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

type Relay struct {
	chain   ContractCaller
	bundler RPCCaller
	sponsor UserOperationSender
	abi     abi.ABI
	chainID uint64
	timeout time.Duration
	poll    time.Duration
	log     *logger.Logger
}

func New(cfg Config, chain ContractCaller, bundler RPCCaller, sponsor UserOperationSender, l *logger.Logger) (*Relay, error) {
	parsed, err := parseEntrypointABI()
	if err != nil {
		return nil, fmt.Errorf("parse entrypoint abi: %w", err)
	}

	r := &Relay{
		chain:   chain,
		bundler: bundler,
		sponsor: sponsor,
		abi:     parsed,
		chainID: cfg.ChainID,
		timeout: cfg.ReceiptTimeout,
		poll:    cfg.PollInterval,
		log:     logger.OrDefault(l).Named("relay"),
	}
	if r.timeout <= 0 {
		r.timeout = DefaultReceiptTimeout
	}
	if r.poll <= 0 {
		r.poll = DefaultPollInterval
	}
	return r, nil
}

// Dial connects the chain and bundler RPC endpoints named in cfg.
func Dial(ctx context.Context, cfg Config, l *logger.Logger) (*Relay, func(), error) {
	chainRPC, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	bundlerRPC, err := rpc.DialContext(ctx, cfg.BundlerURL)
	if err != nil {
		chainRPC.Close()
		return nil, nil, fmt.Errorf("dial bundler rpc: %w", err)
	}

	r, err := New(cfg, ethclient.NewClient(chainRPC), bundlerRPC, NewSponsorClient(cfg.SponsorURL, cfg.SponsorAPIKey), l)
	if err != nil {
		chainRPC.Close()
		bundlerRPC.Close()
		return nil, nil, err
	}

	closeFn := func() {
		chainRPC.Close()
		bundlerRPC.Close()
	}
	return r, closeFn, nil
}

func (r *Relay) SubmitProof(ctx context.Context, proofData string, publicOutputs []string, entrypoint common.Address) (pipeline.RelayReceipt, error) {
	if entrypoint == (common.Address{}) {
		return pipeline.RelayReceipt{}, ErrNoEntrypoint
	}

	calldata, err := r.EntrypointCalldata(ctx, proofData, publicOutputs, entrypoint)
	if err != nil {
		return pipeline.RelayReceipt{}, err
	}

	op, err := r.sponsor.SendUserOperation(ctx, UserOperationRequest{
		ChainID: r.chainID,
		To:      entrypoint,
		Data:    calldata,
	})
	if err != nil {
		return pipeline.RelayReceipt{}, fmt.Errorf("send user operation: %w", err)
	}
	r.log.Infof("User operation %s sent from %s", op.UserOpHash, op.AccountAddress.Hex())

	txHash, err := r.WaitForReceipt(ctx, op.UserOpHash)
	if err != nil {
		return pipeline.RelayReceipt{}, err
	}

	return pipeline.RelayReceipt{
		OperationID:     op.UserOpHash,
		TransactionHash: txHash,
		AccountAddress:  op.AccountAddress,
	}, nil
}

// EntrypointCalldata asks the contract to encode the proof and wraps the result
// in an entrypoint(bytes) call.
func (r *Relay) EntrypointCalldata(ctx context.Context, proofData string, publicOutputs []string, entrypoint common.Address) ([]byte, error) {
	proof, err := decodeProof(proofData)
	if err != nil {
		return nil, err
	}
	words, err := decodeOutputs(publicOutputs)
	if err != nil {
		return nil, err
	}

	input, err := r.abi.Pack("encode", proof, words)
	if err != nil {
		return nil, fmt.Errorf("pack encode: %w", err)
	}

	out, err := r.chain.CallContract(ctx, ethereum.CallMsg{To: &entrypoint, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call encode: %w", err)
	}

	values, err := r.abi.Unpack("encode", out)
	if err != nil {
		return nil, fmt.Errorf("unpack encode: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("encode returned %d values", len(values))
	}
	encoded, ok := values[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("encode returned %T", values[0])
	}

	calldata, err := r.abi.Pack("entrypoint", encoded)
	if err != nil {
		return nil, fmt.Errorf("pack entrypoint: %w", err)
	}
	return calldata, nil
}

type userOperationReceipt struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	Receipt struct {
		TransactionHash common.Hash `json:"transactionHash"`
	} `json:"receipt"`
}

// WaitForReceipt polls the bundler until the user operation lands or the
// receipt timeout elapses.
func (r *Relay) WaitForReceipt(ctx context.Context, userOpHash string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		var receipt *userOperationReceipt
		err := r.bundler.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", userOpHash)
		switch {
		case err != nil && ctx.Err() != nil:
			return "", expired(ctx, userOpHash)
		case err != nil:
			r.log.Warnf("Receipt lookup for %s failed: %v", userOpHash, err)
		case receipt != nil && !receipt.Success:
			return "", fmt.Errorf("user operation %s reverted: %s", userOpHash, receipt.Reason)
		case receipt != nil:
			return receipt.Receipt.TransactionHash.Hex(), nil
		}

		select {
		case <-ctx.Done():
			return "", expired(ctx, userOpHash)
		case <-ticker.C:
		}
	}
}

func expired(ctx context.Context, userOpHash string) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s", pipeline.ErrRelayTimeout, userOpHash)
}
