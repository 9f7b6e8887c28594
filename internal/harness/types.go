package harness

// Trace event types.
const (
	EventCycle   = "cycle"
	EventOutcome = "outcome"
)

// TraceEvent is either a cycle summary or the outcome of one action.
// A cycle event precedes the outcomes of that cycle.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`
	Day  string `json:"day"`

	// Cycle fields.
	RunID     string `json:"run_id,omitempty"`
	Summary   string `json:"summary,omitempty"` // "applied/total"
	Lookahead bool   `json:"lookahead,omitempty"`
	Status    string `json:"status,omitempty"` // "ok", "aborted" or "failed"

	// Outcome fields.
	Action     string `json:"action,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Occurrence string `json:"occurrence,omitempty"`
	Key        string `json:"key,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every day's expectations and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one cycle event per day followed by its outcomes.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}

// Outcomes returns the outcome events, in order.
func (r *Result) Outcomes() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventOutcome {
			out = append(out, ev)
		}
	}
	return out
}
