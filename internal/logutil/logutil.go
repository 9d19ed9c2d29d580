package logutil

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

var (
	// stderr is where logging returns after Close.
	stderr io.Writer = os.Stderr

	logger  = newLogger(stderr)
	verbose bool
	closer  io.Closer
	mu      sync.RWMutex
)

var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          "fbpublisher",
		ReportTimestamp: true,
		TimeFormat:      "2006/01/02 03:04:05 PM",
		Level:           log.InfoLevel,
		Formatter:       formatterFor(w),
	})
}

// formatterFor picks human readable output for terminals and logfmt for
// everything else (cron mail, files, pipes).
func formatterFor(w io.Writer) log.Formatter {
	if isTerminal(w) {
		return log.TextFormatter
	}
	return log.LogfmtFormatter
}

// SetVerbose adjusts the global logging level.
func SetVerbose(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = enable
	if enable {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// Verbose reports whether verbose logging is enabled.
func Verbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects logging to w, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
	logger.SetFormatter(formatterFor(w))
}

// SetLogFile appends log output to the file at path. Call Close before exit.
func SetLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	SetOutput(f)
	mu.Lock()
	closer = f
	mu.Unlock()
	return nil
}

// Close releases the log file opened by SetLogFile, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	logger.SetOutput(stderr)
	logger.SetFormatter(formatterFor(stderr))
	return err
}

// Debugf logs a debug message when verbose logging is enabled.
func Debugf(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logger.Infof(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...any) {
	logger.Warnf(format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
}
