package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// FileLogger writes a timestamped process log plus one detail file per
// pipeline run. latest.log always points at the current process log.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	runsDir  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in logDir at the given level.
// It creates logDir and logDir/runs, opens run-YYYYMMDD-HHMMSS.log and
// repoints the latest.log symlink.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runsDir := filepath.Join(logDir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", stamp))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		runsDir:  runsDir,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== deepresearch log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

// Path returns the path of the process log file.
func (fl *FileLogger) Path() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) Debugf(format string, args ...interface{}) {
	fl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) Infof(format string, args ...interface{}) {
	fl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) Warnf(format string, args ...interface{}) {
	fl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) Errorf(format string, args ...interface{}) {
	fl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

func (fl *FileLogger) writeRunLog(s string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		fl.runLog.WriteString(s)
	}
}

// LogStepResult appends one line per finished step to the process log.
func (fl *FileLogger) LogStepResult(r models.StepResult) {
	level := "INFO"
	if r.Status != models.StatusOk {
		level = "WARN"
	}
	msg := fmt.Sprintf("step %s %s (%s)", r.Step, r.Status, formatDuration(r.Elapsed))
	if r.Candidate != "" {
		msg += " via " + r.Candidate
	}
	if r.Diagnostic != "" {
		msg += ": " + r.Diagnostic
	}
	fl.logWithLevel(level, msg)
}

// LogPipelineRun writes runs/<id>.log with the full step history of res.
func (fl *FileLogger) LogPipelineRun(res models.PipelineResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s %s ===\n", res.Kind, res.ID)
	fmt.Fprintf(&sb, "Subject: %s\n", res.Metadata.Subject)
	fmt.Fprintf(&sb, "Mode: %s\n", res.Metadata.Mode)
	fmt.Fprintf(&sb, "Status: %s\n", res.Status)
	fmt.Fprintf(&sb, "Started: %s\n", res.Metadata.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Duration: %.1fs\n", res.Metadata.Elapsed.Seconds())
	if res.Metadata.Device != nil {
		fmt.Fprintf(&sb, "Device: %s\n", res.Metadata.Device)
	}
	sb.WriteString("\n")

	for i, s := range res.Steps {
		fmt.Fprintf(&sb, "--- %d. %s [%s] %.2fs ---\n", i+1, s.Step, s.Status, s.Elapsed.Seconds())
		if s.Candidate != "" {
			fmt.Fprintf(&sb, "Candidate: %s\n", s.Candidate)
		}
		if len(s.Tried) > 0 {
			fmt.Fprintf(&sb, "Tried: %s\n", strings.Join(s.Tried, ", "))
		}
		if s.Failure != models.FailureNone {
			fmt.Fprintf(&sb, "Failure: %s\n", s.Failure)
		}
		if s.Diagnostic != "" {
			fmt.Fprintf(&sb, "Diagnostic: %s\n", s.Diagnostic)
		}
		if s.Output != "" {
			fmt.Fprintf(&sb, "Output:\n%s\n", s.Output)
		}
		sb.WriteString("\n")
	}

	path := filepath.Join(fl.runsDir, sanitizeFilename(res.ID)+".log")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write run log %s: %w", path, err)
	}
	fl.Infof("%s %s finished %s, details in %s", res.Kind, res.ID, res.Status, path)
	return nil
}

func sanitizeFilename(s string) string {
	if s == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	if err := fl.runLog.Close(); err != nil {
		return fmt.Errorf("failed to close run log: %w", err)
	}
	fl.runLog = nil
	return nil
}
