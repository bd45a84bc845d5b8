package persistence

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dfslab/dfsbench/pkg/bench/model"
)

// ErrUnknownFormat is returned when a report is neither a JSON object nor a
// JSON array.
var ErrUnknownFormat = errors.New("unknown report format")

var gzipMagic = []byte{0x1f, 0x8b}

// WriteReport serializes report to path. The report is written to a
// temporary file in the same directory and then renamed over path. Paths
// ending in ".gz" are gzipped.
func WriteReport(path string, report *model.SessionReport) (*DataFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	n, err := writeJSON(tmp, report, strings.HasSuffix(path, ".gz"))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0o644)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return &DataFile{
		Datatype: "report",
		UUID:     report.SessionID,
		Path:     path,
		Size:     n,
	}, nil
}

// ReadReport reads a report written by WriteReport. Gzipped files are
// detected from their content. A bare JSON array of results is accepted as
// well, in which case only Results is populated. Results without a file type
// default to model.FileTypeRandom.
func ReadReport(path string) (*model.SessionReport, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return DecodeReport(fp)
}

// DecodeReport decodes a report from r. See ReadReport.
func DecodeReport(r io.Reader) (*model.SessionReport, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		br = bufio.NewReader(gz)
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}

	report := &model.SessionReport{}
	switch first := firstNonSpace(data); first {
	case '{':
		err = json.Unmarshal(data, report)
	case '[':
		err = json.Unmarshal(data, &report.Results)
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrUnknownFormat, first)
	}
	if err != nil {
		return nil, err
	}
	for i := range report.Results {
		if report.Results[i].FileType == "" {
			report.Results[i].FileType = model.FileTypeRandom
		}
	}
	return report, nil
}

func firstNonSpace(b []byte) byte {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
