package blockchain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type StubConnector struct{}

func NewStubConnector() *StubConnector {
	return &StubConnector{}
}

func (c *StubConnector) SendTransaction(_ context.Context, tx Transaction) (SendResult, error) {
	if tx.FunctionName == "" {
		return SendResult{}, fmt.Errorf("missing function name")
	}
	prefix := strings.ToLower(tx.FunctionName)
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return SendResult{
		Status:        TxSuccess,
		TransactionID: fmt.Sprintf("stub-%s-%x", prefix, time.Now().UTC().UnixNano()),
	}, nil
}
