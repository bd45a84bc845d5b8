package main

import (
	"fmt"
	"testing"

	"github.com/dfslab/dfsbench/pkg/bench/model"
)

func Test_parseSizes(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    []int
		wantErr bool
	}{
		{name: "default", values: nil, want: defaultSizes},
		{name: "list", values: []string{"1", "25"}, want: []int{1, 25}},
		{name: "not-a-number", values: []string{"big"}, wantErr: true},
		{name: "zero", values: []string{"0"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSizes(tt.values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSizes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("parseSizes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_parseTypes(t *testing.T) {
	got, err := parseTypes(nil)
	if err != nil || len(got) != 1 || got[0] != model.FileTypeRandom {
		t.Errorf("parseTypes(nil) = %v, %v", got, err)
	}
	got, err = parseTypes([]string{"text", "Binary"})
	if err != nil || len(got) != 2 || got[0] != model.FileTypeText || got[1] != model.FileTypeBinary {
		t.Errorf("parseTypes() = %v, %v", got, err)
	}
	if _, err := parseTypes([]string{"video"}); err == nil {
		t.Errorf("parseTypes() accepted an unknown type")
	}
}

func Test_resolve(t *testing.T) {
	if got := resolve("/home/lab/dfs", "bin/dfc"); got != "/home/lab/dfs/bin/dfc" {
		t.Errorf("resolve() = %s", got)
	}
	if got := resolve("/home/lab/dfs", "/usr/bin/dfc"); got != "/usr/bin/dfc" {
		t.Errorf("resolve() = %s", got)
	}
}
