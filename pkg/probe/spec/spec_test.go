package spec_test

import (
	"testing"

	"github.com/dfslab/dfsbench/pkg/probe/spec"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in     string
		want   spec.Flag
		wantOK bool
	}{
		{in: "list", want: spec.FlagList, wantOK: true},
		{in: " PUT ", want: spec.FlagPut, wantOK: true},
		{in: "Mkdir", want: spec.FlagMkdir, wantOK: true},
		{in: "delete"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := spec.ParseFlag(tt.in)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("ParseFlag(%q) = %v, %v", tt.in, got, ok)
			}
		})
	}
	if spec.FlagGet.String() != "get" || spec.Flag(7).String() != "unknown" {
		t.Errorf("unexpected flag names")
	}
}
