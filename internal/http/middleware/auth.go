package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/magnifycash/backend/internal/auth"
	"github.com/magnifycash/backend/internal/blockchain"
)

// RequireAuth accepts a valid access cookie and exposes the session's user
// id and lower-cased wallet address to handlers.
func RequireAuth(jwt *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Request.Cookie(auth.AccessCookieName)
		if err != nil || cookie.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := jwt.Parse(cookie.Value)
		if err != nil || claims.Type != auth.TokenAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		wallet, err := blockchain.NormalizeAddress(claims.WalletAddress)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("session_id", claims.SessionID)
		c.Set("wallet", wallet)
		c.Next()
	}
}
