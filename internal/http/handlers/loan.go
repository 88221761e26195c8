package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/magnifycash/backend/internal/domain/lending"
	"github.com/magnifycash/backend/internal/transactions"
)

type TransactionService interface {
	RequestLoan(ctx context.Context, wallet string) (*transactions.Result, error)
	RepayLoan(ctx context.Context, wallet, signatureHex string) (*transactions.Result, error)
	ClaimNFT(ctx context.Context, wallet string, kind lending.ClaimKind, proof json.RawMessage) (json.RawMessage, error)
	Register(wallet, txID, action string) (transactions.WatchStatus, error)
	Status(wallet, txID string) (transactions.WatchStatus, error)
}

type LoanHandler struct {
	txService TransactionService
}

func NewLoanHandler(txService TransactionService) *LoanHandler {
	return &LoanHandler{txService: txService}
}

type repayRequest struct {
	Signature string `json:"signature"`
}

type claimRequest struct {
	Kind  string          `json:"kind" binding:"required"`
	Proof json.RawMessage `json:"proof" binding:"required"`
}

type registerRequest struct {
	TransactionID string `json:"transactionId" binding:"required"`
	Action        string `json:"action"`
}

func (h *LoanHandler) RequestLoan(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.txService.RequestLoan(c.Request.Context(), wallet)
	writeResult(c, res, err)
}

func (h *LoanHandler) RepayLoan(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req repayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	res, err := h.txService.RepayLoan(c.Request.Context(), wallet, strings.TrimSpace(req.Signature))
	writeResult(c, res, err)
}

// writeResult sends 200 for any submitted transaction, failed or not; the
// failure reason travels in the result. Guard violations map to 4xx codes.
func writeResult(c *gin.Context, res *transactions.Result, err error) {
	if err != nil {
		status, code := transactionError(err)
		c.JSON(status, gin.H{"error": code})
		return
	}
	c.JSON(http.StatusOK, res)
}

func transactionError(err error) (int, string) {
	switch {
	case errors.Is(err, transactions.ErrSnapshotUnavailable):
		return http.StatusBadGateway, "contract_read_failed"
	case errors.Is(err, transactions.ErrNoNFT):
		return http.StatusConflict, "nft_required"
	case errors.Is(err, transactions.ErrActiveLoan):
		return http.StatusConflict, "active_loan_exists"
	case errors.Is(err, transactions.ErrNoActiveLoan):
		return http.StatusConflict, "no_active_loan"
	case errors.Is(err, transactions.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, transactions.ErrUnknownTransaction):
		return http.StatusNotFound, "transaction_not_found"
	case errors.Is(err, transactions.ErrTooManyPending):
		return http.StatusTooManyRequests, "too_many_pending_transactions"
	case errors.Is(err, transactions.ErrVerificationFailed):
		return http.StatusUnprocessableEntity, "verification_failed"
	default:
		return http.StatusInternalServerError, "transaction_failed"
	}
}

func (h *LoanHandler) ClaimNFT(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	kind, ok := lending.ParseClaimKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_claim_kind"})
		return
	}

	out, err := h.txService.ClaimNFT(c.Request.Context(), wallet, kind, req.Proof)
	if err != nil {
		status, code := transactionError(err)
		body := gin.H{"error": code}
		if errors.Is(err, transactions.ErrVerificationFailed) {
			body["message"] = strings.TrimPrefix(err.Error(), transactions.ErrVerificationFailed.Error()+": ")
		}
		c.JSON(status, body)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

func (h *LoanHandler) RegisterTransaction(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	st, err := h.txService.Register(wallet, strings.TrimSpace(req.TransactionID), strings.TrimSpace(req.Action))
	if err != nil {
		status, code := transactionError(err)
		c.JSON(status, gin.H{"error": code})
		return
	}
	c.JSON(http.StatusAccepted, st)
}

func (h *LoanHandler) TransactionStatus(c *gin.Context) {
	wallet, ok := walletFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	st, err := h.txService.Status(wallet, strings.TrimSpace(c.Param("txId")))
	if err != nil {
		status, code := transactionError(err)
		c.JSON(status, gin.H{"error": code})
		return
	}
	c.JSON(http.StatusOK, st)
}
