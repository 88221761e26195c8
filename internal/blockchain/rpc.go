package blockchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// DialRPC opens a raw JSON-RPC client for methods ethclient does not wrap
// (eth_sendTransaction, provider-specific alchemy_* calls).
func DialRPC(ctx context.Context, rawURL string) (*rpc.Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("missing rpc url")
	}
	client, err := rpc.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return client, nil
}
