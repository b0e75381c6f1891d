/*
Package stdlog provides a minimal logging interface to allow canopy to use
nearly any logging implementation.
*/
package stdlog

// StdLog is a minimal interface implemented by nearly every logging
// package, including the standard library log.Logger and the standard
// logger adapters of structured packages such as zap.  Canopy uses this
// interface for all logging, which allows any logging package to be
// plugged in.
type StdLog interface {
	// Print logs a message.  Arguments are handled in the manner of
	// fmt.Print.
	Print(v ...interface{})

	// Println logs a message.  Arguments are handled in the manner of
	// fmt.Println.
	Println(v ...interface{})

	// Printf logs a message.  Arguments are handled in the manner of
	// fmt.Printf.
	Printf(format string, v ...interface{})
}
