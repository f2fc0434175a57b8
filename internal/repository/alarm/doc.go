// Package alarm persists the armed alarm slot so it survives a daemon
// restart.
//
// The FileRepository stores the slot as protobuf JSON of a
// google.protobuf.Struct and exposes a Repository interface that the
// scheduler depends on.
package alarm
