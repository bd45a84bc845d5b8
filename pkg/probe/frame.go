package probe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/dfslab/dfsbench/pkg/probe/spec"
)

var (
	// ErrInvalidCommand is returned when a command cannot be encoded.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrShortRead is returned when the connection ends in the middle of a
	// length prefix, a status or a length-prefixed body.
	ErrShortRead = errors.New("short read")

	// ErrFrameSize is returned for a negative length prefix or one larger
	// than spec.MaxFrameSize.
	ErrFrameSize = errors.New("invalid frame size")
)

// Command is a single request sent to a DFS server.
type Command struct {
	Flag     spec.Flag
	Username string
	Password string
	// Folder defaults to spec.DefaultFolder.
	Folder string
	// Filename defaults to spec.NullFilename.
	Filename string
}

func (c Command) folder() string {
	if c.Folder == "" {
		return spec.DefaultFolder
	}
	return c.Folder
}

func (c Command) filename() string {
	if c.Filename == "" {
		return spec.NullFilename
	}
	return c.Filename
}

// String returns the command text sent on the wire.
func (c Command) String() string {
	return c.text(c.Password)
}

// Redacted returns the command text with the password masked.
func (c Command) Redacted() string {
	return c.text("****")
}

func (c Command) text(password string) string {
	return fmt.Sprintf("FLAG %d USERNAME %s PASSWORD %s FOLDER %s FILENAME %s",
		c.Flag, c.Username, password, c.folder(), c.filename())
}

// Validate checks that every token of the command is non-empty and has no
// whitespace, since the server splits the command text on whitespace.
func (c Command) Validate() error {
	if c.Flag.String() == "unknown" {
		return fmt.Errorf("%w: unknown flag %d", ErrInvalidCommand, c.Flag)
	}
	tokens := map[string]string{
		"username": c.Username,
		"password": c.Password,
		"folder":   c.folder(),
		"filename": c.filename(),
	}
	for name, v := range tokens {
		if v == "" {
			return fmt.Errorf("%w: empty %s", ErrInvalidCommand, name)
		}
		if strings.IndexFunc(v, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: %s contains whitespace", ErrInvalidCommand, name)
		}
	}
	return nil
}

// WriteCommand writes the command frame for c to w.
func WriteCommand(w io.Writer, c Command) error {
	if err := c.Validate(); err != nil {
		return err
	}
	text := c.String()
	buf := make([]byte, 4+len(text))
	binary.BigEndian.PutUint32(buf, uint32(len(text)))
	copy(buf[4:], text)
	_, err := w.Write(buf)
	return err
}

// Split is one chunk of an uploaded file.
type Split struct {
	Marker  spec.Marker
	ID      int32
	Content []byte
}

// Splits cuts content into splits of at most size bytes. Empty content still
// yields a single empty split. IDs start at 1. A single split is marked
// spec.MarkerInitial. Otherwise the first split is MarkerInitial, the last
// MarkerFinal and the others MarkerChunk.
func Splits(content []byte, size int) []Split {
	if size <= 0 {
		size = spec.DefaultSplitSize
	}
	n := (len(content) + size - 1) / size
	if n == 0 {
		n = 1
	}
	splits := make([]Split, 0, n)
	for i := 0; i < n; i++ {
		end := min((i+1)*size, len(content))
		s := Split{
			Marker:  spec.MarkerChunk,
			ID:      int32(i + 1),
			Content: content[min(i*size, len(content)):end],
		}
		switch {
		case i == 0:
			s.Marker = spec.MarkerInitial
		case i == n-1:
			s.Marker = spec.MarkerFinal
		}
		splits = append(splits, s)
	}
	return splits
}

// WriteSplit writes the frame for s to w.
func WriteSplit(w io.Writer, s Split) error {
	buf := make([]byte, 9+len(s.Content))
	buf[0] = byte(s.Marker)
	binary.BigEndian.PutUint32(buf[1:5], uint32(s.ID))
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(s.Content)))
	copy(buf[9:], s.Content)
	_, err := w.Write(buf)
	return err
}

// readInt32 reads a big-endian int32, looping over partial reads.
func readInt32(r io.Reader) (int32, error) {
	var b [4]byte
	n, err := io.ReadFull(r, b[:])
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("%w: got %d of 4 bytes", ErrShortRead, n)
	}
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

// readFrame reads a length-prefixed body.
func readFrame(r io.Reader) ([]byte, error) {
	size, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if size < 0 || size > spec.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameSize, size)
	}
	body := make([]byte, size)
	n, err := io.ReadFull(r, body)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, size)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DecodeMessage returns the text of an unframed server message. Servers
// usually send an int32 length followed by the text, in which case only the
// text is returned, possibly truncated if the body was cut short. Anything
// else is returned as is.
func DecodeMessage(body []byte) string {
	if len(body) > 4 {
		n := int64(binary.BigEndian.Uint32(body[:4]))
		if n > 0 && n <= spec.MaxFrameSize {
			return string(body[4 : 4+min(n, int64(len(body)-4))])
		}
	}
	return strings.TrimRight(string(body), "\x00")
}
