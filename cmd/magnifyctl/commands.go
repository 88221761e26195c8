package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/magnifycash/backend/internal/app"
	"github.com/magnifycash/backend/internal/blockchain"
	"github.com/magnifycash/backend/internal/cache"
	"github.com/magnifycash/backend/internal/config"
	"github.com/magnifycash/backend/internal/domain/lending"
)

func newRootCmd(cfg config.Config, logger zerolog.Logger, out io.Writer) *cobra.Command {
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:           "magnifyctl",
		Short:         "Inspect Magnify Cash lending state for a wallet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Deadline for chain and indexer calls")

	withChain := func(run func(ctx context.Context, chain *app.Chain, wallet string) (any, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			wallet, err := blockchain.NormalizeAddress(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			chain, err := app.NewChain(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer chain.Close()

			result, err := run(ctx, chain, wallet)
			if err != nil {
				return err
			}
			return writeJSON(out, result)
		}
	}

	snapshotCmd := &cobra.Command{
		Use:   "snapshot <wallet>",
		Short: "Read the wallet's contract data directly from chain",
		Args:  cobra.ExactArgs(1),
		RunE: withChain(func(ctx context.Context, chain *app.Chain, wallet string) (any, error) {
			view := chain.NewAggregator(cfg, cache.NewMemoryStore(), logger).Get(ctx, wallet)
			if view.IsError {
				return nil, fmt.Errorf("contract read failed for %s", wallet)
			}
			return view.Data, nil
		}),
	}

	historyCmd := &cobra.Command{
		Use:   "history <wallet>",
		Short: "List the wallet's loans from the indexer",
		Args:  cobra.ExactArgs(1),
		RunE: withChain(func(ctx context.Context, chain *app.Chain, wallet string) (any, error) {
			return chain.History.BorrowerLoans(ctx, wallet)
		}),
	}

	balancesCmd := &cobra.Command{
		Use:   "balances <wallet>",
		Short: "List the wallet's non-zero token balances",
		Args:  cobra.ExactArgs(1),
		RunE: withChain(func(ctx context.Context, chain *app.Chain, wallet string) (any, error) {
			return chain.Balances.Balances(ctx, wallet)
		}),
	}

	var amount, rate string
	dueCmd := &cobra.Command{
		Use:   "due",
		Short: "Compute the repayment amount for a principal and rate in basis points",
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, ok := new(big.Int).SetString(amount, 10)
			if !ok || principal.Sign() < 0 {
				return fmt.Errorf("invalid --amount %q", amount)
			}
			bps, ok := new(big.Int).SetString(rate, 10)
			if !ok || bps.Sign() < 0 {
				return fmt.Errorf("invalid --rate %q", rate)
			}
			due := lending.AmountDue(principal, bps)
			return writeJSON(out, map[string]string{
				"amountDue":          due.String(),
				"amountDueFormatted": lending.FormatUnits(due, lending.StablecoinUnits),
			})
		},
	}
	dueCmd.Flags().StringVar(&amount, "amount", "", "Principal in token base units")
	dueCmd.Flags().StringVar(&rate, "rate", "0", "Interest rate in basis points")
	_ = dueCmd.MarkFlagRequired("amount")

	rootCmd.AddCommand(snapshotCmd, historyCmd, balancesCmd, dueCmd)
	return rootCmd
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
