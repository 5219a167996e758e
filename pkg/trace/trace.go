package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey struct{}

// NewScanID generates an identifier for one scan cycle so that every log
// line produced during the cycle can be correlated.
func NewScanID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext returns the scan id stored in the context, or "".
func FromContext(ctx context.Context) string {
	if scanID, ok := ctx.Value(contextKey{}).(string); ok {
		return scanID
	}
	return ""
}

// WithContext stores a scan id in the context.
func WithContext(ctx context.Context, scanID string) context.Context {
	return context.WithValue(ctx, contextKey{}, scanID)
}
