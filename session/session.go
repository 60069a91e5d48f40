// Package session drives one test-execution session against an external
// test-host process. It owns the per-test state, applies the host's
// streamed protocol events in wire order, and reports results through a
// caller-supplied Reporter.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hostrun/hostrun/coverage"
	"github.com/hostrun/hostrun/model"
	"github.com/hostrun/hostrun/protocol"
)

// Handle identifies one test to the reporting surface. The engine treats
// handles as opaque values; callers supply them alongside the identities.
type Handle any

// Reporter is the surface the session reports against. Implementations do
// not need to be safe for concurrent use; the session serializes all calls.
// End is called exactly once, after every requested test has received a
// terminal state.
type Reporter interface {
	Started(h Handle)
	Passed(h Handle, d time.Duration)
	Failed(h Handle, msgs []model.Message, d time.Duration)
	Errored(h Handle, msgs []model.Message, d time.Duration)
	Skipped(h Handle)
	AppendOutput(text string, loc *model.Location, h Handle)
	AddCoverage(fc model.FileCoverage)
	End()
}

// machine applies protocol events to the pending-test set. An identity is
// removed from pending exactly once, by its first terminal event; whatever
// is still pending when the session ends is reported skipped.
type machine struct {
	logger   zerolog.Logger
	reporter Reporter

	mu      sync.Mutex
	pending map[string]Handle
	// closeInput signals the host that no further input follows; set by the
	// controller once the host's stdin pipe exists
	closeInput func()
}

func newMachine(logger zerolog.Logger, reporter Reporter, ids []string, handles map[string]Handle) *machine {
	pending := make(map[string]Handle, len(ids))
	for _, id := range ids {
		pending[id] = handles[id]
	}
	return &machine{
		logger:   logger,
		reporter: reporter,
		pending:  pending,
	}
}

// apply mutates the test state for one decoded event. Events are applied
// strictly in the order their lines arrived; once a line is decoded it is
// always fully applied.
func (m *machine) apply(ev protocol.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind() {
	case protocol.KindStarted:
		h, ok := m.pending[ev.Started]
		if !ok {
			m.logger.Warn().Str("id", ev.Started).Msg("Started event for unknown test")
			return
		}
		m.reporter.Started(h)

	case protocol.KindInform:
		h, ok := m.pending[ev.Inform]
		if !ok {
			m.logger.Warn().Str("id", ev.Inform).Msg("Inform event for unknown test")
			return
		}
		for _, msg := range resolveMessages(ev) {
			m.reporter.AppendOutput(msg.Text, msg.Location, h)
		}

	case protocol.KindPassed:
		h, ok := m.take(ev.Passed)
		if !ok {
			return
		}
		m.reporter.Passed(h, ev.Elapsed())

	case protocol.KindFailed:
		h, ok := m.take(ev.Failed)
		if !ok {
			return
		}
		m.reporter.Failed(h, resolveMessages(ev), ev.Elapsed())

	case protocol.KindErrored:
		h, ok := m.take(ev.Errored)
		if !ok {
			return
		}
		m.reporter.Errored(h, resolveMessages(ev), ev.Elapsed())

	case protocol.KindFinished:
		if text := ev.FinishedText(); text != "" {
			m.reporter.AppendOutput(text, nil, nil)
		}
		if m.closeInput != nil {
			m.closeInput()
		}

	case protocol.KindCoverage:
		m.reporter.AddCoverage(coverage.Assemble(ev.Coverage, ev.Counts))
	}
}

// take removes an identity from the pending set for a terminal event.
// A terminal event for an identity already removed (or never requested) is
// a protocol misuse by the host; it is logged and dropped rather than
// reported against a synthetic handle.
func (m *machine) take(id string) (Handle, bool) {
	h, ok := m.pending[id]
	if !ok {
		m.logger.Warn().Str("id", id).Msg("Terminal event for unknown or already finished test")
		return nil, false
	}
	delete(m.pending, id)
	return h, true
}

// appendFreeText forwards unstructured output (host stderr, lifecycle
// notices) to the run's output channel.
func (m *machine) appendFreeText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporter.AppendOutput(text, nil, nil)
}

// skipRemaining reports every still-pending identity as skipped. Called
// once, after the session outcome has been observed, so a crashed or
// prematurely terminated host cannot leave tests unreported.
func (m *machine) skipRemaining() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.pending {
		delete(m.pending, id)
		m.reporter.Skipped(h)
	}
}

// end finalizes the run on the reporting surface.
func (m *machine) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporter.End()
}

func (m *machine) setCloseInput(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeInput = f
}

// resolveMessages maps an event's diagnostics to reporting form. An event
// carries either a single message or an array, never both; each entry is
// resolved independently, becoming diff-style exactly when that entry has
// both an actual and an expected value.
func resolveMessages(ev protocol.Event) []model.Message {
	if ev.Message != nil {
		return []model.Message{resolveMessage(*ev.Message)}
	}
	if len(ev.Messages) == 0 {
		return nil
	}
	out := make([]model.Message, 0, len(ev.Messages))
	for _, msg := range ev.Messages {
		out = append(out, resolveMessage(msg))
	}
	return out
}

func resolveMessage(msg protocol.Message) model.Message {
	out := model.Message{Text: msg.Text}
	if msg.Actual != nil && msg.Expected != nil {
		out.Diff = true
		out.Actual = *msg.Actual
		out.Expected = *msg.Expected
	}
	if msg.Location != nil {
		// Wire lines are 1-based; reporting positions are 0-based.
		out.Location = &model.Location{
			Path:   msg.Location.Path,
			Line:   msg.Location.Line - 1,
			Column: msg.Location.Column,
		}
	}
	return out
}
