package model

import "time"

// Location is a position in a source file, in reporting coordinates
// (0-based line and column).
type Location struct {
	// Path to the source file
	Path string `json:"path"`
	// Line in the file (0-based)
	Line int `json:"line"`
	// Column on the line (0-based)
	Column int `json:"column"`
}

// Message is one user-visible diagnostic attached to a test.
// When Diff is set, Actual and Expected carry the two sides of a
// comparison and the message should be rendered as a diff rather
// than flat text.
type Message struct {
	// Text is the message body
	Text string `json:"text"`
	// Location of the message in the source, if known
	Location *Location `json:"location,omitempty"`
	// Diff indicates an actual/expected pair is present
	Diff bool `json:"diff,omitempty"`
	// Actual value, only meaningful when Diff is set
	Actual string `json:"actual,omitempty"`
	// Expected value, only meaningful when Diff is set
	Expected string `json:"expected,omitempty"`
}

// LineCount is the hit count for one executable line of a source file.
type LineCount struct {
	// Line in reporting coordinates
	Line int `json:"line"`
	// Count of times the line executed
	Count uint32 `json:"count"`
}

// FileCoverage is the sparse statement coverage for one source file.
// Lines without an executable statement do not appear at all.
type FileCoverage struct {
	// Path to the covered file
	Path string `json:"path"`
	// Lines with at least a recorded count (possibly zero)
	Lines []LineCount `json:"lines"`
}

// Outcome is the terminal state of one session. It is produced exactly
// once per session, after the host process has exited (or failed to
// start), and before any remaining tests are marked skipped.
type Outcome struct {
	// ExitCode of the host process; -1 when the code is unknown
	// (killed by a signal, or the process never started)
	ExitCode int `json:"exit_code"`
	// Err holds the spawn or wait error, if any
	Err error `json:"-"`
}

// Success reports whether the host exited cleanly with code 0.
func (o Outcome) Success() bool {
	return o.Err == nil && o.ExitCode == 0
}

// Summary counts terminal test states for one session.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// Total returns the number of tests that received any terminal state.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Errored + s.Skipped
}

// Result is one terminal per-test result as seen by the reporting surface.
type Result struct {
	// ID is the test identity the host reported against
	ID string `json:"id"`
	// State is one of "passed", "failed", "errored", "skipped"
	State string `json:"state"`
	// Duration reported by the host (zero for skipped tests)
	Duration time.Duration `json:"duration"`
	// Messages attached to the terminal event, if any
	Messages []Message `json:"messages,omitempty"`
}
