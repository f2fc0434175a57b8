// Package logger wraps zap for the daemon and the CLI:
//   - a process-wide sugared logger with a compact console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV) so services
//     log with the component name and request fields attached,
//   - level parsing for config files and flags.
//
// Every service derives its context with WithName and logs through the
// package helpers instead of holding a logger field.
package logger
