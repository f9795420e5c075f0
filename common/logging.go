package common

import "go.uber.org/zap"

// NewNopLogger returns a logger that discards everything, used as the
// default whenever a caller does not supply one. Logging in this module is
// diagnostic only: it never participates in control flow or error handling.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}

// OrNop returns l if non-nil, else a no-op logger.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
