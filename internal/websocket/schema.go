package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// TickResponse carries the authoritative countdown value once per second.
type TickResponse struct {
	Event         Event `json:"event"`
	TimeRemaining int   `json:"time_remaining"`
	AnsweredCount int   `json:"answered_count"`
}

// SubmittedResponse announces that the session reached Submitted, whether by
// user action or by the countdown hitting zero.
type SubmittedResponse struct {
	Event            Event `json:"event"`
	Score            int   `json:"score"`
	TotalQuestions   int   `json:"total_questions"`
	TimeTakenSeconds int   `json:"time_taken_seconds"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
