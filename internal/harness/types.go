package harness

import (
	"github.com/dmoskov/shadowsky/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Trace is the deterministic text trace of the executed flow, one
	// line per record. Used for golden comparison.
	Trace []string `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Views computed by the flow, consumed by assertions. A view is nil
	// until its operation has run.
	Feed     []engine.FeedItem           `json:"-"`
	Threads  []engine.ConversationThread `json:"-"`
	Frontier []string                    `json:"-"`

	ranAggregate     bool
	ranConversations bool
	ranFrontier      bool
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// addTrace appends trace lines.
func (r *Result) addTrace(lines ...string) {
	r.Trace = append(r.Trace, lines...)
}
