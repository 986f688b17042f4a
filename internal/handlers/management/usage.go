package management

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GET /api/usage/summary?range=daily|weekly|monthly
func (h *Handler) UsageSummary(c *gin.Context) {
	summary, err := h.ledger.SummaryForRange(c.Request.Context(), c.Query("range"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GET /api/usage/series?days=7
func (h *Handler) UsageSeries(c *gin.Context) {
	days := intQuery(c, "days", 7)
	series, err := h.ledger.Series(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "series": series})
}

// GET /api/usage/recent?limit=50&offset=0
func (h *Handler) UsageRecent(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	logs, err := h.ledger.RecentLogs(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	total, err := h.ledger.LogsCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "logs": logs})
}

// GET /api/usage/channels?days=30
func (h *Handler) UsageChannels(c *gin.Context) {
	days := intQuery(c, "days", 30)
	since := time.Now().AddDate(0, 0, -days)
	stats, err := h.ledger.ChannelsBreakdown(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "channels": stats})
}

// GET /api/usage/models?days=30
func (h *Handler) UsageModels(c *gin.Context) {
	days := intQuery(c, "days", 30)
	since := time.Now().AddDate(0, 0, -days)
	costs, err := h.ledger.ModelsCostSince(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": err.Error(), "type": "internal_error"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "models": costs})
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
