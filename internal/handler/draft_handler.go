package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailgatekeeper/internal/service/scan"
)

type DraftHandler struct {
	scanner *scan.Service
	logger  *zap.Logger
}

func NewDraftHandler(scanner *scan.Service, logger *zap.Logger) *DraftHandler {
	return &DraftHandler{scanner: scanner, logger: logger}
}

// CreateDraft handles POST /v1/drafts.
func (h *DraftHandler) CreateDraft(c *gin.Context) {
	var req struct {
		AlertID       string `json:"alert_id"`
		Body          string `json:"body"`
		SubjectPrefix string `json:"subject_prefix"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.AlertID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alert_id is required"})
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	result, err := h.scanner.CreateDraftReply(c.Request.Context(), req.AlertID, req.Body, req.SubjectPrefix)
	if err != nil {
		if errors.Is(err, scan.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown alert_id"})
			return
		}
		h.logger.Error("draft creation failed",
			zap.String("alert_id", req.AlertID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "draft creation failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
