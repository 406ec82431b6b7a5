package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// pkgLogger is the package-level debug logger used by components that are
// not handed a logger directly.
var pkgLogger *DebugLogger
var pkgLoggerMu sync.RWMutex

// SetPackageLogger sets the package-level logger.
func SetPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	defer pkgLoggerMu.Unlock()
	pkgLogger = l
}

// debugLog writes a message using the package-level logger.
func debugLog(category, format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()

	if l != nil {
		l.Log(category, format, args...)
	}
}

// Log rotation limits for file-backed loggers.
const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
)

// DebugLogger writes timestamped, category-tagged lines.
// A nil logger or one without a writer is a no-op.
type DebugLogger struct {
	mu sync.Mutex
	w  io.WriteCloser
}

// NewDebugLogger creates a logger writing to the specified path with size-based
// rotation. If the path is empty, returns a no-op logger.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logger := &DebugLogger{w: &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	}}
	logger.Log("START", "=== tierup debug log started at %s ===", time.Now().Format(time.RFC3339))

	return logger, nil
}

// NewDebugLoggerForProject creates a debug logger in the project's
// .tierup/logs directory. Returns a no-op logger if it cannot be created.
func NewDebugLoggerForProject(projectRoot string) *DebugLogger {
	logPath := filepath.Join(projectRoot, ".tierup", "logs", "tierup.log")
	logger, err := NewDebugLogger(logPath)
	if err != nil {
		return &DebugLogger{}
	}
	return logger
}

// NewWriterLogger creates a logger writing to w. Used by tests and by callers
// that want log lines on stderr.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: nopCloser{w}}
}

// NopLogger returns a no-op logger.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes a timestamped message under the given category.
func (l *DebugLogger) Log(category, format string, args ...interface{}) {
	if l == nil || l.w == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.w, "[%s] %-10s %s\n", timestamp, category, msg)
}

// Close closes the underlying writer.
func (l *DebugLogger) Close() error {
	if l == nil || l.w == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
