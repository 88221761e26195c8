package aggregator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/magnifycash/backend/internal/domain/lending"
)

const (
	fanOutLimit = 8
	// maxTierCount guards the catalog fan-out against a corrupt tierCount.
	maxTierCount = 256
)

// fetch runs the read sequence for one wallet. Any failed read aborts the
// whole sequence.
func (a *Aggregator) fetch(ctx context.Context, wallet string) (*lending.ContractData, error) {
	walletAddr := common.HexToAddress(wallet)

	loanToken, err := a.callAddress(ctx, "loanToken")
	if err != nil {
		return nil, err
	}
	tierCountRaw, err := a.callUint(ctx, "tierCount")
	if err != nil {
		return nil, err
	}
	if !tierCountRaw.IsInt64() || tierCountRaw.Int64() > maxTierCount {
		return nil, fmt.Errorf("tierCount %s out of range", tierCountRaw)
	}
	tierCount := tierCountRaw.Int64()

	nft, err := a.fetchNFT(ctx, walletAddr)
	if err != nil {
		return nil, err
	}

	loans, err := a.fetchLoans(ctx, walletAddr)
	if err != nil {
		return nil, err
	}

	allTiers, err := a.fetchCatalog(ctx, tierCount)
	if err != nil {
		return nil, err
	}

	// The NFT's tier is shared with the catalog entry so both views agree.
	if nft.Tier != nil && nft.Tier.TierID.IsInt64() {
		if catalogTier, ok := allTiers[nft.Tier.TierID.Int64()]; ok {
			nft.Tier = catalogTier
		}
	}

	return &lending.ContractData{
		LoanToken: loanToken,
		TierCount: tierCount,
		NFTInfo:   nft,
		Loans:     loans,
		AllTiers:  allTiers,
	}, nil
}

func (a *Aggregator) fetchNFT(ctx context.Context, wallet common.Address) (lending.NFTInfo, error) {
	tokenID, err := a.callUint(ctx, "userNFT", wallet)
	if err != nil {
		return lending.NFTInfo{}, err
	}
	if tokenID.Sign() == 0 {
		return lending.NFTInfo{}, nil
	}
	tierID, err := a.callUint(ctx, "nftToTier", tokenID)
	if err != nil {
		return lending.NFTInfo{}, err
	}
	tier, err := a.readTier(ctx, tierID)
	if err != nil {
		return lending.NFTInfo{}, err
	}
	return lending.NFTInfo{TokenID: tokenID, Tier: tier}, nil
}

func (a *Aggregator) fetchLoans(ctx context.Context, wallet common.Address) ([]lending.Loan, error) {
	out, err := a.reader.Call(ctx, "fetchLoansByAddress", wallet)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("fetchLoansByAddress: expected 1 output, got %d", len(out))
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("fetchLoansByAddress: unexpected output type %T", out[0])
	}

	loans := make([]lending.Loan, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, id := range ids {
		g.Go(func() error {
			loan, err := a.readLoan(gctx, id)
			if err != nil {
				return err
			}
			loans[i] = loan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return loans, nil
}

func (a *Aggregator) fetchCatalog(ctx context.Context, tierCount int64) (map[int64]*lending.Tier, error) {
	tiers := make([]*lending.Tier, tierCount)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i := range tierCount {
		g.Go(func() error {
			tier, err := a.readTier(gctx, big.NewInt(i+1))
			if err != nil {
				return err
			}
			tiers[i] = tier
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog := make(map[int64]*lending.Tier, tierCount)
	for i, tier := range tiers {
		catalog[int64(i)+1] = tier
	}
	return catalog, nil
}

func (a *Aggregator) readTier(ctx context.Context, tierID *big.Int) (*lending.Tier, error) {
	out, err := a.reader.Call(ctx, "tiers", tierID)
	if err != nil {
		return nil, err
	}
	vals, err := bigOutputs("tiers", out, 3)
	if err != nil {
		return nil, err
	}
	status := lending.StatusForTier(tierID)
	if !status.Known {
		a.log.Warn().Str("tier_id", tierID.String()).Msg("unknown tier id, assuming device verification")
	}
	return &lending.Tier{
		LoanAmount:         vals[0],
		InterestRate:       vals[1],
		LoanPeriod:         vals[2],
		TierID:             new(big.Int).Set(tierID),
		VerificationStatus: status,
	}, nil
}

func (a *Aggregator) readLoan(ctx context.Context, loanID *big.Int) (lending.Loan, error) {
	out, err := a.reader.Call(ctx, "loans", loanID)
	if err != nil {
		return lending.Loan{}, err
	}
	if len(out) != 5 {
		return lending.Loan{}, fmt.Errorf("loans(%s): expected 5 outputs, got %d", loanID, len(out))
	}
	isActive, ok := out[2].(bool)
	if !ok {
		return lending.Loan{}, fmt.Errorf("loans(%s): isActive has type %T", loanID, out[2])
	}
	nums, err := bigOutputs("loans", []any{out[0], out[1], out[3], out[4]}, 4)
	if err != nil {
		return lending.Loan{}, err
	}
	return lending.Loan{
		Amount:       nums[0],
		StartTime:    nums[1],
		IsActive:     isActive,
		InterestRate: nums[2],
		LoanPeriod:   nums[3],
	}, nil
}

func (a *Aggregator) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := a.reader.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	vals, err := bigOutputs(method, out, 1)
	if err != nil {
		return nil, err
	}
	return vals[0], nil
}

func (a *Aggregator) callAddress(ctx context.Context, method string) (string, error) {
	out, err := a.reader.Call(ctx, method)
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", fmt.Errorf("%s: expected 1 output, got %d", method, len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("%s: unexpected output type %T", method, out[0])
	}
	return addr.Hex(), nil
}

func bigOutputs(method string, out []any, want int) ([]*big.Int, error) {
	if len(out) != want {
		return nil, fmt.Errorf("%s: expected %d outputs, got %d", method, want, len(out))
	}
	vals := make([]*big.Int, want)
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok || n == nil {
			return nil, fmt.Errorf("%s: output %d has type %T", method, i, v)
		}
		vals[i] = n
	}
	return vals, nil
}
