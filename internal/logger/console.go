// Package logger provides leveled loggers for pipeline execution.
//
// Loggers are safe for concurrent use: many requests log through the same
// instance. Console output is colorized when writing to a terminal.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is the formatted logging surface consumed by the pipeline packages.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// StepLogger records each finished pipeline step.
type StepLogger interface {
	LogStepResult(r models.StepResult)
}

// SummaryLogger records the outcome of a whole pipeline run.
type SummaryLogger interface {
	LogPipelineSummary(res models.PipelineResult)
}

// ConsoleLogger logs to a writer with [HH:MM:SS] timestamps and level filtering.
// Color output is enabled automatically for os.Stdout/os.Stderr terminals.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// color.NoColor already accounts for NO_COLOR and non-TTY output
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// Tracef logs a trace-level message.
func (cl *ConsoleLogger) Tracef(format string, args ...interface{}) {
	cl.logWithLevel("TRACE", fmt.Sprintf(format, args...))
}

// Debugf logs a debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs an info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf logs an error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

func colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	}
	return level
}

// LogStepResult logs one finished step at INFO (ok) or WARN (degraded/failed).
// Format: "[HH:MM:SS] [INFO] step summarize ok (3s) via mistral-7b"
func (cl *ConsoleLogger) LogStepResult(r models.StepResult) {
	level := "INFO"
	if r.Status != models.StatusOk {
		level = "WARN"
	}
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	status := string(r.Status)
	if cl.colorOutput {
		switch r.Status {
		case models.StatusOk:
			status = color.New(color.FgGreen).Sprint(status)
		case models.StatusDegraded:
			status = color.New(color.FgYellow).Sprint(status)
		default:
			status = color.New(color.FgRed).Sprint(status)
		}
	}

	msg := fmt.Sprintf("step %s %s (%s)", r.Step, status, formatDuration(r.Elapsed))
	if r.Candidate != "" {
		msg += " via " + r.Candidate
	}
	if r.Diagnostic != "" {
		msg += ": " + r.Diagnostic
	}
	cl.logWithLevel(level, msg)
}

// LogPipelineSummary logs the outcome of a whole pipeline run.
func (cl *ConsoleLogger) LogPipelineSummary(res models.PipelineResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	degraded := 0
	for _, s := range res.Steps {
		if s.Status != models.StatusOk {
			degraded++
		}
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s (%s) finished %s in %s\n",
		timestamp(), res.Kind, res.ID, res.Metadata.Mode, res.Status, formatDuration(res.Metadata.Elapsed))
	fmt.Fprintf(&sb, "  Steps: %d (degraded: %d)\n", len(res.Steps), degraded)
	if len(res.Metadata.ModelsUsed) > 0 {
		fmt.Fprintf(&sb, "  Models: %s\n", strings.Join(res.Metadata.ModelsUsed, ", "))
	}
	if res.Metadata.Truncated {
		sb.WriteString("  Wall-clock budget exceeded; remaining steps skipped\n")
	}

	out := sb.String()
	if cl.colorOutput && res.Status != models.StatusOk {
		out = color.New(color.FgYellow).Sprint(out)
	}
	cl.writer.Write([]byte(out))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Sub-second durations are shown in milliseconds.
// Examples: "250ms", "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case d >= time.Minute:
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		if seconds == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all log messages.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) Debugf(format string, args ...interface{}) {}
func (n *NoOpLogger) Infof(format string, args ...interface{})  {}
func (n *NoOpLogger) Warnf(format string, args ...interface{})  {}
func (n *NoOpLogger) Errorf(format string, args ...interface{}) {}

// MultiLogger fans messages out to several loggers.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines loggers, skipping nil entries.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) Debugf(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Debugf(format, args...)
	}
}

func (m *MultiLogger) Infof(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Infof(format, args...)
	}
}

func (m *MultiLogger) Warnf(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Warnf(format, args...)
	}
}

func (m *MultiLogger) Errorf(format string, args ...interface{}) {
	for _, l := range m.loggers {
		l.Errorf(format, args...)
	}
}

// LogStepResult forwards to every wrapped logger that records steps.
func (m *MultiLogger) LogStepResult(r models.StepResult) {
	for _, l := range m.loggers {
		if sl, ok := l.(StepLogger); ok {
			sl.LogStepResult(r)
		}
	}
}

// LogPipelineSummary forwards to every wrapped logger that records summaries.
func (m *MultiLogger) LogPipelineSummary(res models.PipelineResult) {
	for _, l := range m.loggers {
		if sl, ok := l.(SummaryLogger); ok {
			sl.LogPipelineSummary(res)
		}
	}
}
