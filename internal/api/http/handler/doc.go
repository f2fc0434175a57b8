// Package handler serves the daemon's read-only HTTP surface with gin:
// liveness, the status snapshot and Prometheus metrics.
package handler
