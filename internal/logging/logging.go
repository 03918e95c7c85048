// Package logging wraps a process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the global logger.
type Options struct {
	Level   string
	File    string
	Verbose bool
}

var (
	current atomic.Pointer[log.Logger]
	closer  io.Closer
)

func init() {
	current.Store(newLogger(os.Stderr, log.InfoLevel))
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}

// Init replaces the global logger. When opts.File is set, output goes to a
// size-rotated file instead of stderr.
func Init(opts Options) error {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	var w io.Writer = os.Stderr
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("creating log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     28,
		}
		Close()
		closer = rotator
		w = rotator
	}

	current.Store(newLogger(w, level))
	return nil
}

// SetOutput points the global logger at w. Used by tests to capture output.
func SetOutput(w io.Writer, level log.Level) {
	current.Store(newLogger(w, level))
}

// Close releases the log file, if any.
func Close() {
	if closer != nil {
		closer.Close()
		closer = nil
	}
}

// L returns the current global logger.
func L() *log.Logger {
	return current.Load()
}

// With returns a child logger carrying keyvals on every record.
func With(keyvals ...any) *log.Logger {
	return L().With(keyvals...)
}

func Debug(msg string, keyvals ...any) { L().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...any)  { L().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...any)  { L().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...any) { L().Error(msg, keyvals...) }
