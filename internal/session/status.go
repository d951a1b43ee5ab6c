package session

// Status is the connection state of a session.
type Status int32

const (
	Disconnected Status = iota
	Connecting
	Synchronized
	Faulted
	Reconnecting
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Synchronized:
		return "synchronized"
	case Faulted:
		return "faulted"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON and logs.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// allowed lists every legal transition other than Stop, which may move
// any state to Disconnected.
var allowed = map[Status][]Status{
	Disconnected: {Connecting},
	Connecting:   {Synchronized, Faulted},
	Synchronized: {Synchronized, Faulted},
	Faulted:      {Reconnecting, Disconnected},
	Reconnecting: {Synchronized, Faulted},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Statuses lists every status in declaration order.
func Statuses() []Status {
	return []Status{Disconnected, Connecting, Synchronized, Faulted, Reconnecting}
}
