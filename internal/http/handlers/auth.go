package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magnifycash/backend/internal/auth"
	"github.com/magnifycash/backend/internal/db"
)

type AuthService interface {
	Challenge(ctx context.Context, wallet string) (*auth.Challenge, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*auth.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*db.User, error)
}

type AuthHandler struct {
	authService AuthService
	cookieCfg   auth.CookieConfig
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

type challengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type loginRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Username  string `json:"username"`
}

func NewAuthHandler(authService AuthService, cookieCfg auth.CookieConfig, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, cookieCfg: cookieCfg, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (h *AuthHandler) Challenge(c *gin.Context) {
	var req challengeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}

	if req.WalletAddress != "" && !validWallet(req.WalletAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_wallet_address"})
		return
	}

	ch, err := h.authService.Challenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "challenge_failed"})
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		Message:   req.Message,
		Signature: req.Signature,
		Username:  req.Username,
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: auth.ClientIP(c.Request),
	})
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginErrorCode(err)})
		return
	}

	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens.AccessToken, tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	c.JSON(http.StatusOK, gin.H{
		"user":    userJSON(tokens.User),
		"session": gin.H{"authenticated": true},
	})
}

func loginErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, auth.ErrNonceUsed):
		return "invalid_nonce"
	case errors.Is(err, auth.ErrMessageExpired):
		return "message_expired"
	case errors.Is(err, auth.ErrDomainMismatch):
		return "domain_mismatch"
	default:
		return "authentication_failed"
	}
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	cookie, err := c.Request.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_refresh_cookie"})
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), cookie.Value, c.GetHeader("User-Agent"), auth.ClientIP(c.Request))
	if err != nil {
		code := "refresh_failed"
		if errors.Is(err, auth.ErrSessionRevoked) {
			code = "session_revoked"
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": code})
		return
	}

	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens.AccessToken, tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	cookie, err := c.Request.Cookie(auth.RefreshCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.authService.Logout(c.Request.Context(), cookie.Value)
	}
	auth.ClearAuthCookies(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	uid := c.GetString("user_id")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.authService.Me(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(user)})
}

func userJSON(u *db.User) gin.H {
	if u == nil {
		return gin.H{}
	}
	return gin.H{
		"id":             u.ID,
		"wallet_address": u.WalletAddress,
		"username":       u.Username,
	}
}
