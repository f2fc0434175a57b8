// Package transport is the byte-stream connection to the remote device.
//
// Transport is the boundary the connection state machine drives: connect,
// write, disconnect, plus asynchronous read and error callbacks delivered
// to an attached Handler. Stream implements it over any Dialer; TCP, serial
// and RFCOMM dialers are provided, chosen by the configured kind.
package transport
