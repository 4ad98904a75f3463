package executor

import "testing"

type gracefulTestLogger struct {
	warnfCalls  []string
	infofCalls  []string
	debugfCalls []string
}

func (m *gracefulTestLogger) Warnf(format string, args ...interface{}) {
	m.warnfCalls = append(m.warnfCalls, format)
}

func (m *gracefulTestLogger) Infof(format string, args ...interface{}) {
	m.infofCalls = append(m.infofCalls, format)
}

func (m *gracefulTestLogger) Debugf(format string, args ...interface{}) {
	m.debugfCalls = append(m.debugfCalls, format)
}

func (m *gracefulTestLogger) Errorf(format string, args ...interface{}) {}

func TestGracefulHelpers_NilLogger(t *testing.T) {
	// Should not panic with nil logger
	GracefulWarn(nil, "test message: %v", "error")
	GracefulInfo(nil, "test message: %v", "value")
	GracefulDebug(nil, "test message: %v", "value")
}

func TestGracefulHelpers_WithLogger(t *testing.T) {
	logger := &gracefulTestLogger{}
	GracefulWarn(logger, "warn: %v", "error")
	GracefulInfo(logger, "info: %v", "value")
	GracefulDebug(logger, "debug: %v", "value")

	if len(logger.warnfCalls) != 1 || logger.warnfCalls[0] != "warn: %v" {
		t.Errorf("unexpected Warnf calls: %v", logger.warnfCalls)
	}
	if len(logger.infofCalls) != 1 || logger.infofCalls[0] != "info: %v" {
		t.Errorf("unexpected Infof calls: %v", logger.infofCalls)
	}
	if len(logger.debugfCalls) != 1 || logger.debugfCalls[0] != "debug: %v" {
		t.Errorf("unexpected Debugf calls: %v", logger.debugfCalls)
	}
}
