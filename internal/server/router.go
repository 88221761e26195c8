package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/auth"
	"github.com/magnifycash/backend/internal/config"
	"github.com/magnifycash/backend/internal/http/handlers"
	"github.com/magnifycash/backend/internal/http/middleware"
	"github.com/magnifycash/backend/internal/version"
	"github.com/magnifycash/backend/internal/ws"
)

const maxRequestBody = 1 << 20

type Dependencies struct {
	ReadyChecks         map[string]handlers.Pinger
	AuthHandler         *handlers.AuthHandler
	ContractDataHandler *handlers.ContractDataHandler
	AccountHandler      *handlers.AccountHandler
	LoanHandler         *handlers.LoanHandler
	WSHandler           *ws.Handler
	JWTManager          *auth.JWTManager
}

func NewRouter(cfg config.Config, logger zerolog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
	r.Use(middleware.RequestBodyLimit(maxRequestBody))

	health := handlers.NewHealthHandler(deps.ReadyChecks)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, cfg.AuthChainID, cfg.LendingContract)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.AuthHandler != nil && deps.JWTManager != nil {
		authGroup := r.Group("/v1/auth")
		authGroup.POST("/challenge", deps.AuthHandler.Challenge)
		authGroup.POST("/login", deps.AuthHandler.Login)
		authGroup.POST("/refresh", deps.AuthHandler.Refresh)
		authGroup.POST("/logout", deps.AuthHandler.Logout)

		protected := authGroup.Group("")
		protected.Use(middleware.RequireAuth(deps.JWTManager))
		protected.GET("/me", deps.AuthHandler.Me)

		walletGroup := r.Group("/v1")
		walletGroup.Use(middleware.RequireAuth(deps.JWTManager))
		if h := deps.ContractDataHandler; h != nil {
			walletGroup.GET("/contract-data", h.Get)
			walletGroup.POST("/contract-data/refetch", h.Refetch)
			walletGroup.DELETE("/contract-data", h.Invalidate)
			walletGroup.GET("/tiers", h.Tiers)
			walletGroup.GET("/loans/active", h.ActiveLoan)
		}
		if h := deps.AccountHandler; h != nil {
			walletGroup.GET("/loans/history", h.History)
			walletGroup.GET("/balances", h.Balances)
		}
		if h := deps.LoanHandler; h != nil {
			walletGroup.POST("/loans/request", h.RequestLoan)
			walletGroup.POST("/loans/repay", h.RepayLoan)
			walletGroup.POST("/nft/claim", h.ClaimNFT)
			walletGroup.POST("/transactions", h.RegisterTransaction)
			walletGroup.GET("/transactions/:txId", h.TransactionStatus)
		}
		if deps.WSHandler != nil {
			walletGroup.GET("/ws", deps.WSHandler.HandleWebSocket)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
