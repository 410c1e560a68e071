// Package monitoring carries the process-wide diagnostic logger. Every state
// transition and every error in the pipeline goes through Logf exactly once;
// nothing is swallowed silently.
package monitoring

import "log"

// Logf is the package-level diagnostic logger, defaulting to log.Printf.
// Production wiring leaves it alone; tests redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Mute silences the package logger and returns a function restoring the
// previous one. Intended for tests that exercise error paths.
func Mute() (restore func()) {
	prev := Logf
	Logf = func(string, ...interface{}) {}
	return func() { Logf = prev }
}
