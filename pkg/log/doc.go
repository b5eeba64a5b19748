// Package log provides the logging abstraction used across perfship.
//
// The collector never surfaces errors to its host, so most failures end up
// here at debug level. Library users get a no-op logger unless they inject one;
// the perfship CLI injects the zerolog adapter.
//
// # Usage
//
// Wrap an existing zerolog logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// Or use the no-op logger for tests:
//
//	logger := log.NewNoopLogger()
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with other logging libraries:
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
package log
