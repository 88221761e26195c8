package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/magnifycash/backend/internal/blockchain"
)

// walletFrom returns the session wallet set by the auth middleware.
func walletFrom(c *gin.Context) (string, bool) {
	w := c.GetString("wallet")
	return w, w != ""
}

func validWallet(v string) bool {
	return blockchain.IsAddress(v)
}
