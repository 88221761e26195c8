package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/domain/lending"
)

type Snapshots interface {
	Get(ctx context.Context, wallet string) aggregator.View
	Refetch(ctx context.Context, wallet string) aggregator.View
	Invalidate(ctx context.Context, wallet string) error
}

type ContractDataHandler struct {
	snapshots Snapshots
	now       func() time.Time
}

func NewContractDataHandler(snapshots Snapshots) *ContractDataHandler {
	return &ContractDataHandler{snapshots: snapshots, now: time.Now}
}

// writeView answers 502 only when there is nothing cached to fall back on.
func writeView(c *gin.Context, view aggregator.View) {
	if view.IsError && view.Data == nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "contract_read_failed", "isError": true, "isLoading": false, "data": nil})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *ContractDataHandler) Get(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	writeView(c, h.snapshots.Get(c.Request.Context(), wallet))
}

func (h *ContractDataHandler) Refetch(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	writeView(c, h.snapshots.Refetch(c.Request.Context(), wallet))
}

func (h *ContractDataHandler) Invalidate(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.snapshots.Invalidate(c.Request.Context(), wallet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalidate_failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type tierJSON struct {
	ID int64 `json:"id"`
	*lending.Tier
	InterestPercent int64  `json:"interestPercent"`
	DurationDays    int64  `json:"durationDays"`
	LoanAmountText  string `json:"loanAmountFormatted"`
}

// Tiers lists the catalog from the wallet's snapshot, ordered by tier id.
func (h *ContractDataHandler) Tiers(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	view := h.snapshots.Get(c.Request.Context(), wallet)
	if view.Data == nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "contract_read_failed"})
		return
	}

	ids := make([]int64, 0, len(view.Data.AllTiers))
	for id := range view.Data.AllTiers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]tierJSON, 0, len(ids))
	for _, id := range ids {
		t := view.Data.AllTiers[id]
		if t == nil {
			continue
		}
		out = append(out, tierJSON{
			ID:              id,
			Tier:            t,
			InterestPercent: lending.InterestPercent(t.InterestRate),
			DurationDays:    lending.DurationDays(t.LoanPeriod),
			LoanAmountText:  lending.FormatUnits(t.LoanAmount, lending.StablecoinUnits),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tiers": out, "isError": view.IsError})
}

// ActiveLoan returns the repayment summary of the wallet's active loan.
func (h *ContractDataHandler) ActiveLoan(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	view := h.snapshots.Get(c.Request.Context(), wallet)
	if view.Data == nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "contract_read_failed"})
		return
	}
	loan, ok := view.Data.ActiveLoan()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_active_loan"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": loan, "summary": lending.Summarize(loan, h.now())})
}
