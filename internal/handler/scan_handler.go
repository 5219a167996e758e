package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailgatekeeper/internal/service/scan"
	"mailgatekeeper/pkg/trace"
)

type ScanHandler struct {
	scanner *scan.Service
	logger  *zap.Logger
}

func NewScanHandler(scanner *scan.Service, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, logger: logger}
}

// TriggerScan handles POST /v1/scan. It runs one cycle inline and may
// overlap with a scheduled scan; the store tolerates that.
func (h *ScanHandler) TriggerScan(c *gin.Context) {
	ctx := trace.WithContext(c.Request.Context(), trace.NewScanID())

	result, err := h.scanner.Scan(ctx)
	if err != nil {
		h.logger.Error("manual scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
