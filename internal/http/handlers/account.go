package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magnifycash/backend/internal/balances"
	"github.com/magnifycash/backend/internal/subgraph"
)

type HistoryService interface {
	BorrowerLoans(ctx context.Context, wallet string) ([]subgraph.Loan, error)
}

type BalanceService interface {
	Balances(ctx context.Context, wallet string) ([]balances.TokenBalance, error)
}

// AccountHandler serves the wallet's off-contract views: loan history from
// the indexer and token balances.
type AccountHandler struct {
	history  HistoryService
	balances BalanceService
}

func NewAccountHandler(history HistoryService, balances BalanceService) *AccountHandler {
	return &AccountHandler{history: history, balances: balances}
}

func (h *AccountHandler) History(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	loans, err := h.history.BorrowerLoans(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "history_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}

func (h *AccountHandler) Balances(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	items, err := h.balances.Balances(c.Request.Context(), wallet)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "balances_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": items})
}
