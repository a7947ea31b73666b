package harness

// TraceEvent is one dispatch loop entry in a scenario trace.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Tick     uint64 `json:"tick"`
	Kind     string `json:"kind"`
	Endpoint int    `json:"endpoint"`
	// ID is the alias given by the send step, or the request id.
	ID      string `json:"id"`
	Command string `json:"command"`
	Args    any    `json:"args,omitempty"`
	Result  any    `json:"result,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Label renders the event as "<kind> <command>", the form used by
// assertions.
func (e TraceEvent) Label() string {
	return e.Kind + " " + e.Command
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace contains every loop entry in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// State is the loop state after the last step.
	State string `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
