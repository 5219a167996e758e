package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailgatekeeper/internal/config"
	"mailgatekeeper/internal/model"
)

func alertFrom(id, from, subject string) model.Alert {
	return model.Alert{
		ID:         id,
		From:       from,
		Subject:    subject,
		Category:   model.CategoryActionRequired,
		ReceivedAt: time.Now(),
	}
}

func TestNotifyPostsDigest(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.WebhookConfig{URL: srv.URL, Token: "s3cret"}, zap.NewNop())
	d.Notify(context.Background(), []model.Alert{
		alertFrom("a", "John Doe <john@x.com>", "Invoice #9"),
	})

	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, "application/json", gotContentType)

	var p payload
	require.NoError(t, json.Unmarshal(gotBody, &p))
	assert.Equal(t, "now", p.Mode)
	assert.Contains(t, p.Text, "1 new alert(s)")
	assert.Contains(t, p.Text, "[action_required] John Doe: Invoice #9")
}

func TestNotifyNoAuthHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	d := NewDispatcher(config.WebhookConfig{URL: srv.URL}, zap.NewNop())
	d.Notify(context.Background(), []model.Alert{alertFrom("a", "x@x.com", "s")})

	assert.Empty(t, gotAuth)
}

func TestNotifySkipsWithoutURL(t *testing.T) {
	d := NewDispatcher(config.WebhookConfig{}, zap.NewNop())
	// Must not panic or attempt any request.
	d.Notify(context.Background(), []model.Alert{alertFrom("a", "x@x.com", "s")})
}

func TestNotifySkipsEmptyBatch(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	d := NewDispatcher(config.WebhookConfig{URL: srv.URL}, zap.NewNop())
	d.Notify(context.Background(), nil)

	assert.False(t, called)
}

func TestNotifySwallowsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(config.WebhookConfig{URL: srv.URL}, zap.NewNop())
	// Failure is logged, never raised.
	d.Notify(context.Background(), []model.Alert{alertFrom("a", "x@x.com", "s")})
}

func TestDigestCapsAtFive(t *testing.T) {
	alerts := make([]model.Alert, 8)
	for i := range alerts {
		alerts[i] = alertFrom("id", "sender@x.com", "subject")
	}

	text := digest(alerts)
	assert.Contains(t, text, "8 new alert(s)")
	assert.Contains(t, text, "...and 3 more")
	assert.Equal(t, 5, strings.Count(text, "•"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "John Doe", displayName(`"John Doe" <john@x.com>`))
	assert.Equal(t, "John Doe", displayName("John Doe <john@x.com>"))
	assert.Equal(t, "john@x.com", displayName("john@x.com"))
	assert.Equal(t, "(unknown)", displayName("  "))
}
