package domain

// ActivityState is the single activity the conversation is engaged in.
type ActivityState int

const (
	StateIdle ActivityState = iota
	StateRecording
	StateTranscribing
	StateThinking
)

func (s ActivityState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	case StateThinking:
		return "thinking"
	default:
		return "unknown"
	}
}

// Label is the status line a front-end shows while in s. Idle has none.
func (s ActivityState) Label(assistantName string) string {
	switch s {
	case StateRecording:
		return "Listening..."
	case StateTranscribing:
		return "Transcribing Audio..."
	case StateThinking:
		return assistantName + " is thinking..."
	default:
		return ""
	}
}
