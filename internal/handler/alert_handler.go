package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailgatekeeper/internal/config"
	"mailgatekeeper/internal/model"
	"mailgatekeeper/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type AlertHandler struct {
	alerts *store.AlertStore
	cfg    config.ScanConfig
	logger *zap.Logger
}

func NewAlertHandler(alerts *store.AlertStore, cfg config.ScanConfig, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, cfg: cfg, logger: logger}
}

// ListAlerts handles GET /v1/alerts. Thread collapsing follows the service
// configuration, not the request; `limit` and `since` narrow the response.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since, want RFC3339"})
			return
		}
		since = t
	}

	alerts := h.alerts.List(h.cfg.DeduplicateThreads, h.cfg.ThreadItemLimit)

	out := make([]model.Alert, 0, limit)
	for _, a := range alerts {
		if !since.IsZero() && a.ReceivedAt.Before(since) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{"alerts": out, "count": len(out)})
}
