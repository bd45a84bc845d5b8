package model_test

import (
	"testing"

	"github.com/dfslab/dfsbench/pkg/bench/model"
)

func TestParseFileType(t *testing.T) {
	tests := []struct {
		in      string
		want    model.FileType
		wantErr bool
	}{
		{in: "random", want: model.FileTypeRandom},
		{in: "TEXT", want: model.FileTypeText},
		{in: " binary ", want: model.FileTypeBinary},
		{in: "zeros", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := model.ParseFileType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFileType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFileType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
