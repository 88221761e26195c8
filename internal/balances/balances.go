package balances

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/domain/lending"
)

const (
	NativeTokenAddress = "0x0000000000000000000000000000000000000000"
	defaultDecimals    = 18
)

// RPC is the JSON-RPC transport the balance lookups run over; *rpc.Client
// from go-ethereum satisfies it.
type RPC interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

type TokenBalance struct {
	ContractAddress string   `json:"contractAddress"`
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	Decimals        int      `json:"decimals"`
	RawBalance      *big.Int `json:"rawBalance"`
	Balance         string   `json:"balance"`
}

type Client struct {
	rpc RPC
	log zerolog.Logger
}

func NewClient(rpc RPC, log zerolog.Logger) *Client {
	return &Client{rpc: rpc, log: log.With().Str("component", "balances").Logger()}
}

type tokenBalancesResult struct {
	Address       string `json:"address"`
	TokenBalances []struct {
		ContractAddress string `json:"contractAddress"`
		TokenBalance    string `json:"tokenBalance"`
	} `json:"tokenBalances"`
}

type tokenMetadata struct {
	Decimals *int   `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// Balances lists the wallet's non-zero holdings: native ETH first, then ERC-20
// tokens in the order the provider reports them.
func (c *Client) Balances(ctx context.Context, wallet string) ([]TokenBalance, error) {
	addr, err := blockchain.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}

	var nativeHex string
	if err := c.rpc.CallContext(ctx, &nativeHex, "eth_getBalance", addr, "latest"); err != nil {
		return nil, fmt.Errorf("eth_getBalance: %w", err)
	}
	native, err := parseHexBig(nativeHex)
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance: %w", err)
	}

	var tokens tokenBalancesResult
	if err := c.rpc.CallContext(ctx, &tokens, "alchemy_getTokenBalances", addr); err != nil {
		return nil, fmt.Errorf("alchemy_getTokenBalances: %w", err)
	}

	detailed := make([]*TokenBalance, len(tokens.TokenBalances))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, tok := range tokens.TokenBalances {
		raw, err := parseHexBig(tok.TokenBalance)
		if err != nil {
			c.log.Debug().Str("token", tok.ContractAddress).Str("balance", tok.TokenBalance).Msg("skipping unparsable token balance")
			continue
		}
		if raw.Sign() <= 0 {
			continue
		}
		g.Go(func() error {
			var meta tokenMetadata
			if err := c.rpc.CallContext(gctx, &meta, "alchemy_getTokenMetadata", tok.ContractAddress); err != nil {
				return fmt.Errorf("alchemy_getTokenMetadata %s: %w", tok.ContractAddress, err)
			}
			decimals := defaultDecimals
			if meta.Decimals != nil && *meta.Decimals > 0 {
				decimals = *meta.Decimals
			}
			detailed[i] = &TokenBalance{
				ContractAddress: strings.ToLower(tok.ContractAddress),
				Symbol:          meta.Symbol,
				Name:            meta.Name,
				Decimals:        decimals,
				RawBalance:      raw,
				Balance:         lending.FormatUnits(raw, decimals),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]TokenBalance, 0, len(detailed)+1)
	if native.Sign() > 0 {
		out = append(out, TokenBalance{
			ContractAddress: NativeTokenAddress,
			Symbol:          "ETH",
			Name:            "Ether",
			Decimals:        defaultDecimals,
			RawBalance:      native,
			Balance:         lending.FormatUnits(native, defaultDecimals),
		})
	}
	for _, tb := range detailed {
		if tb != nil {
			out = append(out, *tb)
		}
	}
	return out, nil
}

func parseHexBig(v string) (*big.Int, error) {
	clean := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "0x")
	if clean == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(clean, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", v)
	}
	return n, nil
}
