// Package coverage converts raw per-line hit counts from the test host into
// normalized statement-coverage records.
package coverage

import "github.com/hostrun/hostrun/model"

// Assemble builds the sparse coverage record for one source file. Each slot
// of counts is either nil (no executable statement on that line, excluded
// from the record entirely) or the number of times the line executed.
//
// The reported line is the slot index minus one. The host indexes coverage
// slots with the same 1-based numbering it uses for message locations, but
// unlike locations the numbering is applied to an array, so slot 0 is
// unused and always null in practice. Do not "fix" this to plain array
// indexing without confirming the host's convention.
//
// Records are not aggregated: each coverage event for a path yields an
// independent record, and hosts are expected to emit at most one per file
// per run.
func Assemble(path string, counts []*uint32) model.FileCoverage {
	fc := model.FileCoverage{Path: path}
	for i, c := range counts {
		if c == nil {
			continue
		}
		fc.Lines = append(fc.Lines, model.LineCount{Line: i - 1, Count: *c})
	}
	return fc
}
