package transactions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/magnifycash/backend/internal/domain/lending"
)

var ErrVerificationFailed = errors.New("verification failed")

type ClaimRequest struct {
	Proof  json.RawMessage `json:"proof"`
	Signal string          `json:"signal"`
	Action string          `json:"action"`
}

// NFTVerifier checks a World ID proof and mints the matching credential NFT.
type NFTVerifier interface {
	Claim(ctx context.Context, req ClaimRequest) (json.RawMessage, error)
}

type HTTPVerifier struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPVerifier(endpoint string) *HTTPVerifier {
	return &HTTPVerifier{endpoint: strings.TrimSpace(endpoint), httpClient: &http.Client{Timeout: 60 * time.Second}}
}

func (v *HTTPVerifier) Claim(ctx context.Context, claim ClaimRequest) (json.RawMessage, error) {
	if v.endpoint == "" {
		return nil, fmt.Errorf("nft verifier endpoint not configured")
	}
	body, err := json.Marshal(claim)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nft verifier: %w", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("nft verifier: decode: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.Message == "" {
			e.Message = "Verification failed"
		}
		return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, e.Message)
	}
	return raw, nil
}

// ClaimNFT forwards the World ID proof for kind and refreshes the wallet's
// snapshot once the credential is minted.
func (s *Service) ClaimNFT(ctx context.Context, wallet string, kind lending.ClaimKind, proof json.RawMessage) (json.RawMessage, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("nft verifier not configured")
	}
	out, err := s.verifier.Claim(ctx, ClaimRequest{Proof: proof, Signal: wallet, Action: kind.Action()})
	if err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet).Str("action", kind.Action()).Msg("nft claim rejected")
		return nil, err
	}
	s.log.Info().Str("wallet", wallet).Str("action", kind.Action()).Msg("verification nft minted")
	s.snapshots.Refetch(ctx, wallet)
	return out, nil
}
