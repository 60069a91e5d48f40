package cli

// This file contains the console reporting surface used by the run
// command. It prints per-test results as they arrive and accumulates the
// output channel, coverage records and summary counts for history.

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hostrun/hostrun/model"
	"github.com/hostrun/hostrun/session"
)

type consoleReporter struct {
	out io.Writer

	mu       sync.Mutex
	output   strings.Builder
	coverage []model.FileCoverage
	summary  model.Summary
	results  []model.Result
}

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (r *consoleReporter) Started(h session.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "  ⋯ %v\n", h)
}

func (r *consoleReporter) Passed(h session.Handle, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Passed++
	r.results = append(r.results, model.Result{ID: fmt.Sprint(h), State: "passed", Duration: d})
	fmt.Fprintf(r.out, "  ✓ %v (%s)\n", h, d.Round(time.Millisecond))
}

func (r *consoleReporter) Failed(h session.Handle, msgs []model.Message, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Failed++
	r.results = append(r.results, model.Result{ID: fmt.Sprint(h), State: "failed", Duration: d, Messages: msgs})
	fmt.Fprintf(r.out, "  ✗ %v (%s)\n", h, d.Round(time.Millisecond))
	r.printMessages(msgs)
}

func (r *consoleReporter) Errored(h session.Handle, msgs []model.Message, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Errored++
	r.results = append(r.results, model.Result{ID: fmt.Sprint(h), State: "errored", Duration: d, Messages: msgs})
	fmt.Fprintf(r.out, "  ! %v (%s)\n", h, d.Round(time.Millisecond))
	r.printMessages(msgs)
}

func (r *consoleReporter) Skipped(h session.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Skipped++
	r.results = append(r.results, model.Result{ID: fmt.Sprint(h), State: "skipped"})
	fmt.Fprintf(r.out, "  - %v (skipped)\n", h)
}

func (r *consoleReporter) AppendOutput(text string, loc *model.Location, h session.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output.WriteString(text)
	r.output.WriteString("\n")
	if h != nil {
		if loc != nil {
			fmt.Fprintf(r.out, "    %v: %s (%s:%d)\n", h, text, loc.Path, loc.Line+1)
			return
		}
		fmt.Fprintf(r.out, "    %v: %s\n", h, text)
		return
	}
	fmt.Fprintf(r.out, "  %s\n", text)
}

func (r *consoleReporter) AddCoverage(fc model.FileCoverage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coverage = append(r.coverage, fc)
}

func (r *consoleReporter) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary
	fmt.Fprintf(r.out, "\n%d passed, %d failed, %d errored, %d skipped\n",
		s.Passed, s.Failed, s.Errored, s.Skipped)
}

func (r *consoleReporter) printMessages(msgs []model.Message) {
	for _, msg := range msgs {
		if msg.Text != "" {
			fmt.Fprintf(r.out, "      %s\n", msg.Text)
		}
		if msg.Diff {
			fmt.Fprintf(r.out, "      expected: %s\n", msg.Expected)
			fmt.Fprintf(r.out, "      actual:   %s\n", msg.Actual)
		}
		if msg.Location != nil {
			fmt.Fprintf(r.out, "      at %s:%d\n", msg.Location.Path, msg.Location.Line+1)
		}
	}
}

// Output returns the accumulated output channel of the run.
func (r *consoleReporter) Output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output.String()
}

// Coverage returns the coverage records collected during the run.
func (r *consoleReporter) Coverage() []model.FileCoverage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coverage
}

// Summary returns the per-state test counts.
func (r *consoleReporter) Summary() model.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Results returns every terminal result in report order.
func (r *consoleReporter) Results() []model.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results
}
