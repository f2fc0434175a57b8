// Package link owns the connection lifecycle to the remote device.
//
// Machine is the tri-state connection state machine (Disconnected,
// Connecting, Connected). It is the single write gate: a frame reaches the
// transport only while the state is Connected, and the check and the write
// happen under the same lock as every transport callback.
package link
