// Package logging implements the Logger interface and default
// implementation named in SPEC_FULL.md §4.14, copied in spirit from
// teacher logging.go (debug-gated, leveled, prefixed output over the
// standard log.Logger) and extended with Fatalf for the fatal-error
// boundaries §7 names (VRAM/persistence failure at shutdown), where the
// teacher itself reaches for a bare panic(err).
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Logger is the leveled logging interface the rest of voxcore depends
// on, never a concrete *log.Logger.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	// Fatalf logs at error level then terminates the process with a
	// nonzero exit code, for the unrecoverable startup/shutdown failures
	// §7 maps to a fatal log + exit rather than a propagated error.
	Fatalf(format string, args ...any)
}

// DefaultLogger writes Debugf/Infof to stdout and Warnf/Errorf/Fatalf to
// stderr, each line prefixed with its level and an optional component
// prefix.
type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
	exit   func(int)
}

// NewDefaultLogger constructs a DefaultLogger. prefix may be empty.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(os.Stdout, "", flags),
		err:    log.New(os.Stderr, "", flags),
		exit:   os.Exit,
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

func (l *DefaultLogger) Fatalf(format string, args ...any) {
	l.err.Print(l.prefixf("FATAL", format, args...))
	l.exit(1)
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything except Fatalf,
// which still terminates the process — useful in tests that don't want
// log noise but must not mask a genuine fatal-path bug.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool                { return false }
func (nopLogger) SetDebug(bool)                     {}
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}
func (nopLogger) Fatalf(format string, args ...any) { os.Exit(1) }
