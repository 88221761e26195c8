package transactions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/magnifycash/backend/internal/blockchain"
)

const stubTxPrefix = "stub-"

// Resolver maps a connector transaction id to the on-chain hash. pending is
// true while the relayer has not broadcast the transaction yet.
type Resolver interface {
	Resolve(ctx context.Context, txID string) (hash common.Hash, pending bool, err error)
}

// TxResolver accepts raw hashes and dev connector ids directly and asks the
// World App developer API for MiniKit transaction ids.
type TxResolver struct {
	appID      string
	baseURL    string
	httpClient *http.Client
}

func NewTxResolver(appID, baseURL string) *TxResolver {
	return &TxResolver{
		appID:      strings.TrimSpace(appID),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type miniKitTransaction struct {
	TransactionHash   string `json:"transactionHash"`
	TransactionStatus string `json:"transactionStatus"`
}

func (r *TxResolver) Resolve(ctx context.Context, txID string) (common.Hash, bool, error) {
	id := strings.TrimSpace(txID)
	switch {
	case blockchain.IsTxHash(id):
		return common.HexToHash(id), false, nil
	case strings.HasPrefix(id, stubTxPrefix):
		return crypto.Keccak256Hash([]byte(id)), false, nil
	}
	if r.appID == "" || r.baseURL == "" {
		return common.Hash{}, false, fmt.Errorf("cannot resolve transaction id %q: world app id not configured", id)
	}

	endpoint := fmt.Sprintf("%s/api/v2/minikit/transaction/%s?app_id=%s&type=transaction",
		r.baseURL, url.PathEscape(id), url.QueryEscape(r.appID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return common.Hash{}, false, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return common.Hash{}, false, fmt.Errorf("resolve transaction %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return common.Hash{}, false, fmt.Errorf("resolve transaction %s: http status %d", id, resp.StatusCode)
	}

	var out miniKitTransaction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return common.Hash{}, false, fmt.Errorf("resolve transaction %s: decode: %w", id, err)
	}
	if !blockchain.IsTxHash(out.TransactionHash) {
		return common.Hash{}, true, nil
	}
	return common.HexToHash(out.TransactionHash), false, nil
}
