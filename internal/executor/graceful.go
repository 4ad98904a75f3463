package executor

import "github.com/priyansh1913/open-deep-research-web/internal/logger"

// graceful.go holds nil-safe logging helpers: steps warn about failures
// but never fail the request because of them.

// GracefulWarn logs a warning if log is non-nil.
func GracefulWarn(log logger.Logger, format string, args ...interface{}) {
	if log != nil {
		log.Warnf(format, args...)
	}
}

// GracefulInfo logs an info message if log is non-nil.
func GracefulInfo(log logger.Logger, format string, args ...interface{}) {
	if log != nil {
		log.Infof(format, args...)
	}
}

// GracefulDebug logs a debug message if log is non-nil.
func GracefulDebug(log logger.Logger, format string, args ...interface{}) {
	if log != nil {
		log.Debugf(format, args...)
	}
}
