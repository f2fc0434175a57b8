// Package daemon wires the link, the dispatcher, the scheduler and the status
// sinks into the breakfast-alarmd process and serves the control API.
package daemon
