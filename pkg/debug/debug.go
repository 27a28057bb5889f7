// Package debug provides conditional debug logging for av.
//
// Debug logging is enabled by setting the AV_DEBUG environment variable:
//
//	AV_DEBUG=1 av --network aop.json
//
// When enabled, debug messages are written to stderr with timestamps.
// When disabled (default), all debug functions are no-ops with zero overhead.
package debug

import (
	"fmt"
	"log"
	"os"
	"time"
)

var (
	// enabled is true when AV_DEBUG env var is set
	enabled bool
	// logger writes to stderr with [AV_DEBUG] prefix
	logger *log.Logger
)

func init() {
	if os.Getenv("AV_DEBUG") != "" {
		enabled = true
		logger = log.New(os.Stderr, "[AV_DEBUG] ", log.Ltime|log.Lmicroseconds)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		logger = log.New(os.Stderr, "[AV_DEBUG] ", log.Ltime|log.Lmicroseconds)
	}
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Printf(format, args...)
}

// LogTiming writes an operation duration if debug logging is enabled.
func LogTiming(op string, elapsed time.Duration) {
	if !enabled {
		return
	}
	logger.Output(2, fmt.Sprintf("%s took %s", op, elapsed))
}
