package continuation

// State is where a run ended.
type State int

const (
	// StateLooping is the in-progress state; a returned Result never carries it.
	StateLooping State = iota
	// StateAlreadyComplete means the input already carried the marker.
	StateAlreadyComplete
	// StateCompleted means a continuation produced the marker.
	StateCompleted
	// StateExhausted means every attempt ran without producing the marker.
	StateExhausted
	// StateAborted means a hard error or cancellation stopped the run.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateLooping:
		return "looping"
	case StateAlreadyComplete:
		return "already_complete"
	case StateCompleted:
		return "completed"
	case StateExhausted:
		return "exhausted"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsComplete reports whether the notes in a result with this state are finished.
func (s State) IsComplete() bool {
	return s == StateAlreadyComplete || s == StateCompleted
}

// MarshalText renders the state name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
