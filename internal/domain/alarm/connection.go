package alarm

// ConnectionState is the lifecycle of the link to the remote device.
type ConnectionState int

const (
	// Disconnected is the initial state; writes are rejected.
	Disconnected ConnectionState = iota
	// Connecting means a connect attempt is in flight; writes are rejected.
	Connecting
	// Connected is the only state that accepts writes.
	Connected
)

// String returns the lower-case state name.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Writable reports whether the state accepts writes.
func (s ConnectionState) Writable() bool {
	return s == Connected
}

// ParseConnectionState is the inverse of String.
func ParseConnectionState(s string) (ConnectionState, bool) {
	switch s {
	case "disconnected":
		return Disconnected, true
	case "connecting":
		return Connecting, true
	case "connected":
		return Connected, true
	default:
		return Disconnected, false
	}
}
