package coverage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hostrun/hostrun/model"
)

func countPtr(n uint32) *uint32 { return &n }

func TestAssemble(t *testing.T) {
	tests := []struct {
		name   string
		counts []*uint32
		want   []model.LineCount
	}{
		{
			name:   "sparse counts keep only present slots",
			counts: []*uint32{nil, countPtr(3), countPtr(0), nil, countPtr(5)},
			want: []model.LineCount{
				{Line: 0, Count: 3},
				{Line: 1, Count: 0},
				{Line: 3, Count: 5},
			},
		},
		{
			name:   "all null",
			counts: []*uint32{nil, nil, nil},
			want:   nil,
		},
		{
			name:   "empty",
			counts: nil,
			want:   nil,
		},
		{
			name:   "zero hit counts are still reported",
			counts: []*uint32{nil, countPtr(0)},
			want:   []model.LineCount{{Line: 0, Count: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := Assemble("/src/foo.lua", tt.counts)
			require.Equal(t, "/src/foo.lua", fc.Path)
			require.Equal(t, tt.want, fc.Lines)
		})
	}
}
