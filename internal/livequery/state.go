package livequery

type State int

const (
	StateIdle State = iota
	StateSubscribed
	StateComputing
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateComputing:
		return "computing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
