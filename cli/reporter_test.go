package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hostrun/hostrun/model"
)

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := newConsoleReporter(&buf)

	r.Started("A")
	r.Passed("A", 12*time.Millisecond)
	r.Failed("B", []model.Message{{
		Text:     "values differ",
		Diff:     true,
		Actual:   "1",
		Expected: "2",
		Location: &model.Location{Path: "spec/a.lua", Line: 9},
	}}, 5*time.Millisecond)
	r.Skipped("C")
	r.AppendOutput("host noise", nil, nil)
	r.AddCoverage(model.FileCoverage{Path: "/src/a.lua", Lines: []model.LineCount{{Line: 0, Count: 3}}})
	r.End()

	summary := r.Summary()
	require.Equal(t, model.Summary{Passed: 1, Failed: 1, Skipped: 1}, summary)
	require.Equal(t, 3, summary.Total())

	out := buf.String()
	require.Contains(t, out, "✓ A (12ms)")
	require.Contains(t, out, "✗ B (5ms)")
	require.Contains(t, out, "expected: 2")
	require.Contains(t, out, "actual:   1")
	require.Contains(t, out, "at spec/a.lua:10")
	require.Contains(t, out, "- C (skipped)")
	require.Contains(t, out, "1 passed, 1 failed, 0 errored, 1 skipped")

	require.Equal(t, "host noise\n", r.Output())
	require.Len(t, r.Coverage(), 1)

	results := r.Results()
	require.Len(t, results, 3)
	require.Equal(t, "passed", results[0].State)
	require.Equal(t, "failed", results[1].State)
	require.Equal(t, "skipped", results[2].State)
}
