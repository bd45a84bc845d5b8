// Package workload generates the synthetic files uploaded during a benchmark.
package workload

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dfslab/dfsbench/pkg/bench/model"
)

const (
	// ChunkSize is the maximum size of a single write.
	ChunkSize = 1 << 20

	// Sentence is repeated to fill text files.
	Sentence = "This is a test file for distributed file system performance evaluation. "
)

// BinaryPattern is repeated to fill binary files.
var BinaryPattern = []byte{
	0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f,
}

// Generator creates workload files inside Dir.
type Generator struct {
	// Dir is the directory where files are created. It must exist.
	Dir string

	rnd *rand.Rand
}

// New returns a Generator writing to dir.
func New(dir string) *Generator {
	return &Generator{
		Dir: dir,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create writes a file called name of exactly size bytes, filled according to
// ft, and returns its path. The caller owns the file. On error, any partially
// written file is removed.
func (g *Generator) Create(size int64, name string, ft model.FileType) (string, error) {
	var src io.Reader
	switch ft {
	case model.FileTypeRandom:
		src = g.rnd
	case model.FileTypeText:
		src = repeat([]byte(Sentence))
	case model.FileTypeBinary:
		src = repeat(BinaryPattern)
	default:
		return "", fmt.Errorf("unsupported file type %q", ft)
	}

	path := filepath.Join(g.Dir, name)
	fp, err := os.Create(path)
	if err != nil {
		return "", err
	}
	err = writeChunks(fp, src, size)
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// writeChunks copies exactly size bytes from src to dst, ChunkSize at most
// per write.
func writeChunks(dst io.Writer, src io.Reader, size int64) error {
	buf := make([]byte, ChunkSize)
	for remaining := size; remaining > 0; {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(src, buf[:n]); err != nil {
			return err
		}
		if _, err := dst.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// patternReader is an endless reader repeating a pattern.
type patternReader struct {
	pattern []byte
	off     int
}

func repeat(pattern []byte) *patternReader {
	return &patternReader{pattern: bytes.Clone(pattern)}
}

func (r *patternReader) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) {
		c := copy(b[n:], r.pattern[r.off:])
		n += c
		r.off = (r.off + c) % len(r.pattern)
	}
	return n, nil
}
