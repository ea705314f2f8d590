package nav

import "github.com/dualpane/navigator/internal/vfs"

// OutcomeKind is the terminal result class of one change attempt.
type OutcomeKind string

const (
	// OutcomeNone - the task has not reached a terminal state yet.
	OutcomeNone OutcomeKind = "none"
	// OutcomeCommitted - the panel now shows the resolved folder.
	OutcomeCommitted OutcomeKind = "committed"
	// OutcomeCancelled - the user declined a prompt; not an error.
	OutcomeCancelled OutcomeKind = "cancelled"
	// OutcomeKilled - the attempt was aborted before the point of no return.
	OutcomeKilled OutcomeKind = "killed"
	// OutcomeFailed - the attempt failed; Err carries the cause.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the terminal result of a change attempt.
type Outcome struct {
	Kind   OutcomeKind
	Handle vfs.Handle // set for OutcomeCommitted
	Err    error      // set for OutcomeFailed
}
