// Package protocol implements the line-delimited JSON protocol spoken by a
// test-host process.
//
// Messages are JSON-encoded, one object per line. The engine sends a single
// run request on the host's stdin and the host streams lifecycle events back
// on stdout. A typical sequence is as follows:
//
//	{"run":["TestA","TestB"]}           (engine -> host)
//	{"started":"TestA"}                 (host -> engine)
//	{"inform":"TestA","message":{...}}
//	{"passed":"TestA","duration":12}
//	{"failed":"TestB","messages":[...],"duration":5}
//	{"coverage":"/src/a.lua","counts":[null,3,0]}
//	{"finished":true,"message":"done"}
package protocol

import (
	"bufio"
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies which event a decoded line carries. Exactly one kind
// matches per line; a line matching none decodes to KindNone and is a no-op.
type Kind int

const (
	KindNone Kind = iota
	KindStarted
	KindInform
	KindPassed
	KindFailed
	KindErrored
	KindFinished
	KindCoverage
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindInform:
		return "inform"
	case KindPassed:
		return "passed"
	case KindFailed:
		return "failed"
	case KindErrored:
		return "errored"
	case KindFinished:
		return "finished"
	case KindCoverage:
		return "coverage"
	}
	return "none"
}

// Location is a source position as the host reports it. Line is 1-based;
// Column is 0-based and defaults to 0 when absent.
type Location struct {
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// Message is one diagnostic carried by an inform, failed or errored event.
// Actual and Expected are only present together when the host captured a
// comparison; their presence requests a diff-style presentation.
type Message struct {
	Text     string    `json:"text"`
	Location *Location `json:"location,omitempty"`
	Actual   *string   `json:"actual,omitempty"`
	Expected *string   `json:"expected,omitempty"`
}

// UnmarshalJSON accepts either a JSON object or a bare string. Finished
// events carry their run-completion text as a plain string in the "message"
// field, where every other event carries a structured object.
func (m *Message) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &m.Text)
	}
	type message Message
	return json.Unmarshal(data, (*message)(m))
}

// Event is one decoded line of host output. The tag fields (Started through
// Coverage) are mutually exclusive; the remaining fields carry the payload
// for whichever tag is set.
type Event struct {
	Started  string          `json:"started,omitempty"`
	Inform   string          `json:"inform,omitempty"`
	Passed   string          `json:"passed,omitempty"`
	Failed   string          `json:"failed,omitempty"`
	Errored  string          `json:"errored,omitempty"`
	Finished json.RawMessage `json:"finished,omitempty"`
	Coverage string          `json:"coverage,omitempty"`

	// Message and Messages are mutually exclusive per event.
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	// Duration in milliseconds, for terminal events
	Duration float64 `json:"duration,omitempty"`
	// Counts holds per-line hit counts for coverage events; a null entry
	// marks a line with no executable statement
	Counts []*uint32 `json:"counts,omitempty"`
}

// Kind returns the event's tag, dispatching on which field is present.
func (e *Event) Kind() Kind {
	switch {
	case e.Started != "":
		return KindStarted
	case e.Inform != "":
		return KindInform
	case e.Passed != "":
		return KindPassed
	case e.Failed != "":
		return KindFailed
	case e.Errored != "":
		return KindErrored
	case e.Coverage != "":
		return KindCoverage
	case len(e.Finished) > 0:
		return KindFinished
	}
	return KindNone
}

// Identity returns the test identity for identity-bearing events, or "".
func (e *Event) Identity() string {
	switch e.Kind() {
	case KindStarted:
		return e.Started
	case KindInform:
		return e.Inform
	case KindPassed:
		return e.Passed
	case KindFailed:
		return e.Failed
	case KindErrored:
		return e.Errored
	}
	return ""
}

// Elapsed converts the event's millisecond duration to a time.Duration.
func (e *Event) Elapsed() time.Duration {
	return time.Duration(e.Duration * float64(time.Millisecond))
}

// FinishedText returns the run-completion message of a finished event.
// Hosts either put the text in a sibling "message" field or use it directly
// as the value of the "finished" key; both forms are accepted.
func (e *Event) FinishedText() string {
	if e.Message != nil {
		return e.Message.Text
	}
	var s string
	if err := json.Unmarshal(e.Finished, &s); err == nil {
		return s
	}
	return ""
}

// DecodeLine parses one complete line as an event. An empty line decodes to
// the zero event (KindNone). A malformed line returns an error; the line is
// then treated as carrying no recognized event, never as fatal.
func DecodeLine(line []byte) (Event, error) {
	var ev Event
	if len(line) == 0 {
		return ev, nil
	}
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Decoder reads host output line by line and decodes each complete line
// independently. A trailing line without a terminator is still delivered
// when the stream ends.
type Decoder struct {
	scanner *bufio.Scanner
	logger  zerolog.Logger
}

// maxLineSize bounds a single protocol line; hosts embedding large
// diagnostics stay well under this.
const maxLineSize = 1024 * 1024

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, logger zerolog.Logger) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{
		scanner: scanner,
		logger:  logger,
	}
}

// Next returns the next decoded event. It returns io.EOF when the stream
// ends and a non-EOF error only for underlying read failures. Lines that
// fail to parse are logged and returned as the zero event.
func (d *Decoder) Next() (Event, error) {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}
	ev, err := DecodeLine(d.scanner.Bytes())
	if err != nil {
		d.logger.Warn().Err(err).Str("line", d.scanner.Text()).Msg("Ignoring malformed protocol line")
		return Event{}, nil
	}
	return ev, nil
}

// RunRequest is the single control message sent to the host, naming the
// test identities to execute in order.
type RunRequest struct {
	Run []string `json:"run"`
}

// WriteRunRequest encodes a run request as one newline-terminated JSON
// object on w.
func WriteRunRequest(w io.Writer, ids []string) error {
	return json.NewEncoder(w).Encode(&RunRequest{Run: ids})
}
