package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go_stocksync/models"
	"go_stocksync/services/sync"
)

// SyncController handles manual sync triggers and status queries
type SyncController struct {
	orchestrator *sync.Orchestrator
	store        sync.Store
}

// NewSyncController creates a new sync controller
func NewSyncController(orchestrator *sync.Orchestrator, store sync.Store) *SyncController {
	return &SyncController{orchestrator: orchestrator, store: store}
}

// TriggerSync runs one sync pass synchronously and returns its counts
// POST /api/sync/:dataType
func (sc *SyncController) TriggerSync(c *gin.Context) {
	dataType := c.Param("dataType")

	var result sync.Result
	switch dataType {
	case models.DataTypeStocks:
		result = sc.orchestrator.SyncStocks(c.Request.Context())
	case models.DataTypePrices:
		result = sc.orchestrator.SyncPrices(c.Request.Context())
	case models.DataTypeIndicators:
		result = sc.orchestrator.SyncIndicators(c.Request.Context())
	case models.DataTypeFinancials:
		result = sc.orchestrator.SyncFundamentals(c.Request.Context())
	case models.DataTypeDividends:
		result = sc.orchestrator.SyncDividends(c.Request.Context())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown data type: " + dataType})
		return
	}

	status := http.StatusOK
	if result.Status == models.SyncStatusFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"data": result})
}

// GetSyncStatus returns recent sync run records, newest first
// GET /api/sync/status
func (sc *SyncController) GetSyncStatus(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	statuses, err := sc.store.ListSyncStatuses(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": statuses})
}

// GetSyncErrors returns recent per-entity failures, newest first
// GET /api/sync/errors
func (sc *SyncController) GetSyncErrors(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	unresolvedOnly := c.DefaultQuery("unresolved", "false") == "true"

	syncErrors, err := sc.store.ListSyncErrors(c.Request.Context(), unresolvedOnly, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync errors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": syncErrors})
}
