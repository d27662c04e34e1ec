package session

// Status is the connection state of a session's transport. It starts at
// StatusConnecting, moves to StatusConnected when the socket opens, and
// to StatusDisconnected on any close or error, after which the connector
// schedules the next attempt.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
