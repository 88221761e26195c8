package subgraph

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/magnifycash/backend/internal/blockchain"
)

const (
	defaultPageSize = 100
	defaultMaxPages = 10
)

const borrowerLoansQuery = `query BorrowerDashboard($walletAddress: String!, $first: Int!, $skip: Int!) {
  loans(
    where: { borrower: $walletAddress }
    orderBy: startTime
    orderDirection: desc
    first: $first
    skip: $skip
  ) {
    id
    amount
    amountPaidBack
    duration
    startTime
    nftCollection { id }
    lendingDesk { erc20 { id symbol decimals } }
    nftId
    interest
    status
    lender { id }
  }
}`

// Client queries the indexer for a borrower's loan history.
type Client struct {
	endpoint string
	gql      *graphql.Client
	due      blockchain.Reader
	mock     bool
	pageSize int
	maxPages int
	log      zerolog.Logger
}

// NewClient builds a history client. due may be nil, in which case loans are
// returned without the amount-due enrichment.
func NewClient(endpoint string, due blockchain.Reader, mock bool, log zerolog.Logger) *Client {
	c := &Client{
		endpoint: strings.TrimSpace(endpoint),
		due:      due,
		mock:     mock,
		pageSize: defaultPageSize,
		maxPages: defaultMaxPages,
		log:      log.With().Str("component", "subgraph").Logger(),
	}
	c.gql = graphql.NewClient(c.endpoint, graphql.WithHTTPClient(&http.Client{Timeout: 20 * time.Second}))
	c.gql.Log = func(s string) { c.log.Trace().Msg(s) }
	return c
}

type borrowerLoansResponse struct {
	Loans []Loan `json:"loans"`
}

// BorrowerLoans returns the wallet's loans, newest first.
func (c *Client) BorrowerLoans(ctx context.Context, wallet string) ([]Loan, error) {
	addr, err := blockchain.NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}
	if c.mock {
		return MockLoans(), nil
	}
	if c.endpoint == "" {
		return nil, fmt.Errorf("subgraph endpoint not configured")
	}

	var loans []Loan
	for page := 0; page < c.maxPages; page++ {
		batch, err := c.queryPage(ctx, addr, page*c.pageSize)
		if err != nil {
			return nil, err
		}
		loans = append(loans, batch...)
		if len(batch) < c.pageSize {
			break
		}
	}

	if err := c.enrichAmountDue(ctx, loans); err != nil {
		return nil, err
	}
	c.log.Debug().Str("wallet", addr).Int("loans", len(loans)).Msg("borrower history loaded")
	return loans, nil
}

func (c *Client) queryPage(ctx context.Context, wallet string, skip int) ([]Loan, error) {
	req := graphql.NewRequest(borrowerLoansQuery)
	req.Var("walletAddress", wallet)
	req.Var("first", c.pageSize)
	req.Var("skip", skip)

	var out borrowerLoansResponse
	if err := c.gql.Run(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("subgraph query: %w", err)
	}
	return out.Loans, nil
}

func (c *Client) enrichAmountDue(ctx context.Context, loans []Loan) error {
	if c.due == nil || len(loans) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range loans {
		id, ok := new(big.Int).SetString(loans[i].ID, 10)
		if !ok {
			c.log.Debug().Str("loan_id", loans[i].ID).Msg("skipping amount due for non-numeric loan id")
			continue
		}
		g.Go(func() error {
			out, err := c.due.Call(gctx, "getLoanAmountDue", id)
			if err != nil {
				return fmt.Errorf("amount due for loan %s: %w", loans[i].ID, err)
			}
			if len(out) != 1 {
				return fmt.Errorf("amount due for loan %s: expected 1 output", loans[i].ID)
			}
			due, ok := out[0].(*big.Int)
			if !ok {
				return fmt.Errorf("amount due for loan %s: unexpected type %T", loans[i].ID, out[0])
			}
			loans[i].AmountDue = &Quantity{Int: due}
			return nil
		})
	}
	return g.Wait()
}
