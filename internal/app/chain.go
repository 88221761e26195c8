package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/balances"
	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/config"
	"github.com/magnifycash/backend/internal/subgraph"
)

// Chain bundles the read side shared by the API server and magnifyctl.
type Chain struct {
	Client   *ethclient.Client
	Lending  *blockchain.ContractReader
	Protocol blockchain.Reader
	History  *subgraph.Client
	Balances *balances.Client

	balancesRPC *rpc.Client
}

func NewChain(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Chain, error) {
	client, err := ethclient.DialContext(ctx, cfg.ChainHTTPRPC)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	lendingABI, err := blockchain.LendingABI()
	if err != nil {
		return nil, err
	}
	lending, err := blockchain.NewContractReader(client, cfg.LendingContract, lendingABI)
	if err != nil {
		return nil, err
	}

	var protocol blockchain.Reader
	if strings.TrimSpace(cfg.ProtocolContract) != "" {
		protocolABI, err := blockchain.ProtocolABI()
		if err != nil {
			return nil, err
		}
		reader, err := blockchain.NewContractReader(client, cfg.ProtocolContract, protocolABI)
		if err != nil {
			return nil, err
		}
		protocol = reader
	}

	rpcURL := cfg.BalancesRPCURL
	if strings.TrimSpace(rpcURL) == "" {
		rpcURL = cfg.ChainHTTPRPC
	}
	balancesRPC, err := blockchain.DialRPC(ctx, rpcURL)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &Chain{
		Client:   client,
		Lending:  lending,
		Protocol: protocol,
		History:  subgraph.NewClient(cfg.SubgraphURL, protocol, cfg.SubgraphMock, log),
		Balances: balances.NewClient(balancesRPC, log),

		balancesRPC: balancesRPC,
	}, nil
}

func (c *Chain) Close() {
	c.Client.Close()
	c.balancesRPC.Close()
}

// NewAggregator builds the snapshot service over store.
func (c *Chain) NewAggregator(cfg config.Config, store aggregator.Store, log zerolog.Logger) *aggregator.Aggregator {
	return aggregator.New(c.Lending, store, log, cfg.ChainReadTimeout)
}

// Ping checks the chain endpoint answers.
func (c *Chain) Ping(ctx context.Context) error {
	_, err := c.Client.BlockNumber(ctx)
	return err
}
