package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type MetaHandler struct {
	env             string
	version         string
	chainID         int64
	lendingContract string
}

func NewMetaHandler(env, version string, chainID int64, lendingContract string) *MetaHandler {
	return &MetaHandler{env: env, version: version, chainID: chainID, lendingContract: lendingContract}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":            "Magnify Cash Backend",
		"version":         h.version,
		"env":             h.env,
		"chainId":         h.chainID,
		"lendingContract": h.lendingContract,
	})
}
