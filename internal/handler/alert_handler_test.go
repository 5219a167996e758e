package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailgatekeeper/internal/config"
	"mailgatekeeper/internal/model"
	"mailgatekeeper/internal/store"
)

type listResponse struct {
	Alerts []model.Alert `json:"alerts"`
	Count  int           `json:"count"`
}

func newAlertRouter(alerts *store.AlertStore, cfg config.ScanConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAlertHandler(alerts, cfg, zap.NewNop())
	r := gin.New()
	r.GET("/v1/alerts", h.ListAlerts)
	return r
}

func listAlerts(t *testing.T, r *gin.Engine, query string) (*httptest.ResponseRecorder, listResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/alerts"+query, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp listResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func seed(alerts *store.AlertStore, n int, base time.Time) {
	for i := 0; i < n; i++ {
		alerts.Upsert(model.Alert{
			ID:         string(rune('a' + i)),
			Subject:    "subject " + string(rune('a'+i)),
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
			Category:   model.CategoryActionRequired,
		})
	}
}

func TestListAlertsDefaultLimit(t *testing.T) {
	alerts := store.New()
	seed(alerts, 25, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	r := newAlertRouter(alerts, config.Default().Scan)

	w, resp := listAlerts(t, r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, resp.Count)
	// Newest first.
	assert.True(t, resp.Alerts[0].ReceivedAt.After(resp.Alerts[1].ReceivedAt))
}

func TestListAlertsLimitClamped(t *testing.T) {
	alerts := store.New()
	seed(alerts, 5, time.Now().UTC())
	r := newAlertRouter(alerts, config.Default().Scan)

	_, resp := listAlerts(t, r, "?limit=2")
	assert.Equal(t, 2, resp.Count)

	_, resp = listAlerts(t, r, "?limit=0")
	assert.Equal(t, 1, resp.Count)

	_, resp = listAlerts(t, r, "?limit=10000")
	assert.Equal(t, 5, resp.Count)
}

func TestListAlertsBadLimit(t *testing.T) {
	r := newAlertRouter(store.New(), config.Default().Scan)
	w, _ := listAlerts(t, r, "?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAlertsSinceFilter(t *testing.T) {
	alerts := store.New()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	seed(alerts, 10, base)
	r := newAlertRouter(alerts, config.Default().Scan)

	cutoff := base.Add(5 * time.Minute).Format(time.RFC3339)
	_, resp := listAlerts(t, r, "?since="+cutoff)
	assert.Equal(t, 5, resp.Count)
	for _, a := range resp.Alerts {
		assert.False(t, a.ReceivedAt.Before(base.Add(5*time.Minute)))
	}
}

func TestListAlertsBadSince(t *testing.T) {
	r := newAlertRouter(store.New(), config.Default().Scan)
	w, _ := listAlerts(t, r, "?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAlertsCollapsesThreadsPerConfig(t *testing.T) {
	alerts := store.New()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	alerts.Upsert(model.Alert{ID: "1", Subject: "Project X", ReceivedAt: base})
	alerts.Upsert(model.Alert{ID: "2", Subject: "Re: Project X", ReceivedAt: base.Add(time.Hour)})

	cfg := config.Default().Scan
	cfg.DeduplicateThreads = true
	cfg.ThreadItemLimit = 1
	r := newAlertRouter(alerts, cfg)

	_, resp := listAlerts(t, r, "")
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "2", resp.Alerts[0].ID)
}

func TestListAlertsEmpty(t *testing.T) {
	r := newAlertRouter(store.New(), config.Default().Scan)
	w, resp := listAlerts(t, r, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Alerts)
}
