// Package client implements the breakfast-alarm CLI operations.
//
// Every operation dials the daemon's control API, performs one call and
// prints a one-line result. Scan talks to BlueZ directly and needs no daemon.
package client
