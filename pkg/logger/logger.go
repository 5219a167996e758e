package logger

import (
	"context"

	"go.uber.org/zap"

	"mailgatekeeper/pkg/trace"
)

func NewLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

// WithScan attaches the scan id from the context, if one is set.
func WithScan(ctx context.Context, logger *zap.Logger) *zap.Logger {
	scanID := trace.FromContext(ctx)
	if scanID != "" {
		return logger.With(zap.String("scan_id", scanID))
	}
	return logger
}
