// Package logger is the process-wide log of sercha-connect.
//
// Debug, Info, Warn and Section lines only appear with --verbose; Error
// lines always do. Callers pass codes and tokens through Redact.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose switches verbose output on or off.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// IsVerbose reports whether verbose output is on.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects all log lines. Tests use it; the default is stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// write prints one line. Lines that are not forced are dropped unless
// verbose output is on.
func write(force bool, line string) {
	mu.RLock()
	defer mu.RUnlock()
	if force || verbose {
		fmt.Fprintln(output, line)
	}
}

func Debug(format string, args ...any) {
	write(false, "[DEBUG] "+fmt.Sprintf(format, args...))
}

// Section marks the start of a flow (token exchange, status check) in
// verbose output.
func Section(name string) {
	write(false, "\n=== "+name+" ===")
}

func Info(format string, args ...any) {
	write(false, "[INFO] "+fmt.Sprintf(format, args...))
}

func Warn(format string, args ...any) {
	write(false, "[WARN] "+fmt.Sprintf(format, args...))
}

// Error is printed regardless of verbosity.
func Error(format string, args ...any) {
	write(true, "[ERROR] "+fmt.Sprintf(format, args...))
}

// Redact keeps a short prefix of a secret so log lines stay correlatable.
func Redact(secret string) string {
	const keep = 4
	if len(secret) <= keep*2 {
		return "****"
	}
	return secret[:keep] + "****"
}
