// Package monitoring holds the diagnostic logger shared by the library packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf.
// Binaries may redirect it and tests usually mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
