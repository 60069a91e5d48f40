package session

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hostrun/hostrun/model"
	"github.com/hostrun/hostrun/protocol"
)

// recordingReporter captures every reporting call for assertions.
type recordingReporter struct {
	mu       sync.Mutex
	started  []string
	passed   []string
	failed   []string
	errored  []string
	skipped  []string
	messages map[string][]model.Message
	output   []string
	coverage []model.FileCoverage
	ended    int
	lastDur  time.Duration
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{messages: make(map[string][]model.Message)}
}

func (r *recordingReporter) id(h Handle) string {
	if h == nil {
		return ""
	}
	return h.(string)
}

func (r *recordingReporter) Started(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, r.id(h))
}

func (r *recordingReporter) Passed(h Handle, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passed = append(r.passed, r.id(h))
	r.lastDur = d
}

func (r *recordingReporter) Failed(h Handle, msgs []model.Message, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, r.id(h))
	r.messages[r.id(h)] = msgs
	r.lastDur = d
}

func (r *recordingReporter) Errored(h Handle, msgs []model.Message, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errored = append(r.errored, r.id(h))
	r.messages[r.id(h)] = msgs
	r.lastDur = d
}

func (r *recordingReporter) Skipped(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, r.id(h))
}

func (r *recordingReporter) AppendOutput(text string, loc *model.Location, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = append(r.output, text)
}

func (r *recordingReporter) AddCoverage(fc model.FileCoverage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coverage = append(r.coverage, fc)
}

func (r *recordingReporter) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended++
}

func (r *recordingReporter) terminalIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	ids = append(ids, r.passed...)
	ids = append(ids, r.failed...)
	ids = append(ids, r.errored...)
	ids = append(ids, r.skipped...)
	sort.Strings(ids)
	return ids
}

func (r *recordingReporter) outputContains(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range r.output {
		if line == want {
			return true
		}
	}
	return false
}

func newTestMachine(rep Reporter, ids ...string) *machine {
	handles := make(map[string]Handle, len(ids))
	for _, id := range ids {
		handles[id] = id
	}
	return newMachine(zerolog.Nop(), rep, ids, handles)
}

func event(t *testing.T, line string) protocol.Event {
	t.Helper()
	ev, err := protocol.DecodeLine([]byte(line))
	require.NoError(t, err)
	return ev
}

func TestMachine_EveryIdentityReportedExactlyOnce(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A", "B", "C")

	m.apply(event(t, `{"started":"A"}`))
	m.apply(event(t, `{"passed":"A","duration":12}`))
	m.apply(event(t, `{"failed":"B","message":{"text":"boom"},"duration":3}`))
	m.skipRemaining()

	// The union of terminal states is exactly the requested set, with no
	// duplicates and no omissions.
	require.Equal(t, []string{"A", "B", "C"}, rep.terminalIDs())
	require.Equal(t, []string{"A"}, rep.passed)
	require.Equal(t, []string{"B"}, rep.failed)
	require.Equal(t, []string{"C"}, rep.skipped)
}

func TestMachine_SecondTerminalEventIsDropped(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A")

	m.apply(event(t, `{"passed":"A","duration":1}`))
	m.apply(event(t, `{"failed":"A","duration":1}`))
	m.apply(event(t, `{"errored":"unknown","duration":1}`))
	m.skipRemaining()

	require.Equal(t, []string{"A"}, rep.passed)
	require.Empty(t, rep.failed)
	require.Empty(t, rep.errored)
	require.Empty(t, rep.skipped)
}

func TestMachine_TerminalWithoutStarted(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A")

	// Hosts may skip straight to a terminal event.
	m.apply(event(t, `{"passed":"A","duration":7}`))
	m.skipRemaining()

	require.Empty(t, rep.started)
	require.Equal(t, []string{"A"}, rep.passed)
	require.Equal(t, 7*time.Millisecond, rep.lastDur)
}

func TestMachine_MessageResolution(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A")

	m.apply(event(t, `{"failed":"A","messages":[`+
		`{"text":"values differ","actual":"1","expected":"2","location":{"path":"spec/a.lua","line":10}},`+
		`{"text":"plain note"}`+
		`],"duration":3}`))

	msgs := rep.messages["A"]
	require.Len(t, msgs, 2)

	// An entry with both actual and expected becomes diff-style.
	require.True(t, msgs[0].Diff)
	require.Equal(t, "1", msgs[0].Actual)
	require.Equal(t, "2", msgs[0].Expected)
	// Wire line 10 maps to reporting line 9, column defaults to 0.
	require.NotNil(t, msgs[0].Location)
	require.Equal(t, 9, msgs[0].Location.Line)
	require.Equal(t, 0, msgs[0].Location.Column)

	require.False(t, msgs[1].Diff)
	require.Equal(t, "plain note", msgs[1].Text)
	require.Nil(t, msgs[1].Location)
}

func TestMachine_InformAttachesOutput(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A")

	m.apply(event(t, `{"inform":"A","message":{"text":"hello"}}`))
	m.apply(event(t, `{"inform":"A","messages":[{"text":"one"},{"text":"two"}]}`))
	m.skipRemaining()

	require.Equal(t, []string{"hello", "one", "two"}, rep.output)
	// Inform does not end the test.
	require.Equal(t, []string{"A"}, rep.skipped)
}

func TestMachine_FinishedClosesInputAndLogsMessage(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A")

	closed := false
	m.setCloseInput(func() { closed = true })

	m.apply(event(t, `{"finished":true,"message":"2 tests run"}`))

	require.True(t, closed)
	require.Equal(t, []string{"2 tests run"}, rep.output)

	// A finished event does not terminate pending tests; they are still
	// skipped at the epilogue.
	m.skipRemaining()
	require.Equal(t, []string{"A"}, rep.skipped)
}

func TestMachine_CoverageDelegatesToAssembler(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A")

	m.apply(event(t, `{"coverage":"/src/foo.lua","counts":[null,3,0,null,5]}`))

	require.Len(t, rep.coverage, 1)
	fc := rep.coverage[0]
	require.Equal(t, "/src/foo.lua", fc.Path)
	require.Equal(t, []model.LineCount{
		{Line: 0, Count: 3},
		{Line: 1, Count: 0},
		{Line: 3, Count: 5},
	}, fc.Lines)
}

func TestMachine_UnrecognizedEventIsNoOp(t *testing.T) {
	rep := newRecordingReporter()
	m := newTestMachine(rep, "A")

	m.apply(event(t, `{}`))
	m.apply(event(t, `{"heartbeat":42}`))

	require.Empty(t, rep.output)
	require.Empty(t, rep.terminalIDs())
}
