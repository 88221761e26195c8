package blockchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/magnifycash/backend/internal/config"
)

func NewConnectorFromConfig(ctx context.Context, cfg config.Config) (Connector, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.ChainWriterMode))
	if mode == "" || mode == "stub" {
		return NewStubConnector(), nil
	}
	if mode != "real" {
		return nil, fmt.Errorf("invalid CHAIN_WRITER_MODE: %s", cfg.ChainWriterMode)
	}
	return NewRPCConnector(ctx, cfg.ChainHTTPRPC, cfg.ChainTxGasLimit)
}
