package cli

import (
	"reflect"
	"testing"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty slice",
			in:   []string{},
			want: []string{},
		},
		{
			name: "starts with --",
			in:   []string{"--", "lua", "test-host.lua"},
			want: []string{"lua", "test-host.lua"},
		},
		{
			name: "no --",
			in:   []string{"lua", "test-host.lua"},
			want: []string{"lua", "test-host.lua"},
		},
		{
			name: "only --",
			in:   []string{"--"},
			want: []string{},
		},
		{
			name: "-- in middle",
			in:   []string{"lua", "--", "test-host.lua"},
			want: []string{"lua", "--", "test-host.lua"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := removeFirstDashDash(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("removeFirstDashDash() = %v, want %v", got, tt.want)
			}
		})
	}
}
