// Package probe implements a client speaking the DFS wire protocol directly,
// one command per connection, without going through the DFS client binary.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dfslab/dfsbench/internal/netx"
	"github.com/dfslab/dfsbench/pkg/probe/spec"
)

// Result is the outcome of a single probe.
type Result struct {
	// Server is the probed address.
	Server string
	// Flag is the command that was sent.
	Flag spec.Flag
	// Command is the command text, with the password masked.
	Command string
	// Status is the status returned by the server. OK reports whether it
	// was spec.StatusOK.
	Status int32
	OK     bool

	// FileInfo and FolderInfo are the metadata blobs of a LIST or GET.
	FileInfo   []byte
	FolderInfo []byte

	// Splits is the number of splits sent by a PUT, and Ack the
	// acknowledgement read after them.
	Splits int
	Ack    []byte

	// FailureBody is the raw body read after a non-OK status, and
	// FailureMessage its decoded text.
	FailureBody    []byte
	FailureMessage string

	// Conn holds the connection statistics.
	Conn netx.Stats
}

// Client is a DFS protocol probe.
type Client struct {
	config Config
	dialer *net.Dialer
}

// New returns a Client for config, filling unset fields with defaults.
func New(config Config) *Client {
	if config.Server == "" {
		config.Server = spec.DefaultServer
	}
	if config.Timeout <= 0 {
		config.Timeout = spec.DefaultTimeout
	}
	if config.SplitSize <= 0 || config.SplitSize > spec.MaxFrameSize {
		config.SplitSize = spec.DefaultSplitSize
	}
	if config.Emitter == nil {
		config.Emitter = &HumanReadable{}
	}
	return &Client{
		config: config,
		dialer: &net.Dialer{},
	}
}

func (c *Client) command(flag spec.Flag, folder, filename string) Command {
	return Command{
		Flag:     flag,
		Username: c.config.Username,
		Password: c.config.Password,
		Folder:   folder,
		Filename: filename,
	}
}

// List lists the content of folder.
func (c *Client) List(ctx context.Context, folder string) (*Result, error) {
	return c.Do(ctx, c.command(spec.FlagList, folder, ""), nil)
}

// Get requests filename from folder. Only the file-info blob is read.
func (c *Client) Get(ctx context.Context, folder, filename string) (*Result, error) {
	return c.Do(ctx, c.command(spec.FlagGet, folder, filename), nil)
}

// Put uploads content as filename in folder.
func (c *Client) Put(ctx context.Context, folder, filename string, content []byte) (*Result, error) {
	return c.Do(ctx, c.command(spec.FlagPut, folder, filename), content)
}

// Mkdir creates folder.
func (c *Client) Mkdir(ctx context.Context, folder string) (*Result, error) {
	return c.Do(ctx, c.command(spec.FlagMkdir, folder, ""), nil)
}

// Do sends cmd over a new connection and reads the response. content is only
// used by PUT. A non-OK status is not an error: the returned Result has OK
// set to false and the failure body filled. Connection failures and
// malformed or short responses return a *ProtocolError, along with the
// partial Result when a connection was established. No command is retried.
func (c *Client) Do(ctx context.Context, cmd Command, content []byte) (*Result, error) {
	if err := cmd.Validate(); err != nil {
		c.config.Emitter.OnError(err)
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	conn, err := netx.Dial(ctx, c.dialer, c.config.Server)
	if err != nil {
		perr := &ProtocolError{State: StateDisconnected, Err: err}
		c.config.Emitter.OnError(perr)
		return nil, perr
	}
	defer conn.Close()
	c.config.Emitter.OnConnect(c.config.Server)

	deadline, _ := ctx.Deadline()
	conn.SetDeadline(deadline)
	// Unblock any pending I/O if ctx is canceled before the deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	result := &Result{
		Server:  c.config.Server,
		Flag:    cmd.Flag,
		Command: cmd.Redacted(),
	}
	state, err := c.exchange(conn, cmd, content, deadline, result)
	result.Conn = conn.Stats()
	// Best-effort reads end silently when the deadline is moved by a
	// cancellation, so a canceled exchange must be reported here.
	if err == nil && errors.Is(ctx.Err(), context.Canceled) {
		err = ctx.Err()
	} else if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	if err != nil {
		perr := &ProtocolError{State: state, Err: err}
		c.config.Emitter.OnError(perr)
		return result, perr
	}
	c.config.Emitter.OnResult(result)
	return result, nil
}

// exchange runs the state machine from Connected to its terminal state and
// returns the state it ended in.
func (c *Client) exchange(conn net.Conn, cmd Command, content []byte, deadline time.Time, result *Result) (State, error) {
	state := StateConnected
	c.config.Emitter.OnDebug(fmt.Sprintf("sending command (%d bytes): %s", len(cmd.String()), cmd.Redacted()))
	if err := WriteCommand(conn, cmd); err != nil {
		return state, err
	}

	state = StateAwaitingStatus
	status, err := c.readStatus(conn)
	if err != nil {
		return state, err
	}
	result.Status = status
	c.config.Emitter.OnDebug(fmt.Sprintf("status: %d", status))

	if status != spec.StatusOK {
		state = StateFailure
		body, err := readBestEffort(conn, spec.MaxFailureBody, deadline)
		result.FailureBody = body
		result.FailureMessage = DecodeMessage(body)
		return state, err
	}

	state = StateSuccess
	result.OK = true
	switch cmd.Flag {
	case spec.FlagList:
		if result.FileInfo, err = readFrame(conn); err != nil {
			return state, fmt.Errorf("file info: %w", err)
		}
		if result.FolderInfo, err = readFrame(conn); err != nil {
			return state, fmt.Errorf("folder info: %w", err)
		}
	case spec.FlagGet:
		if result.FileInfo, err = readFrame(conn); err != nil {
			return state, fmt.Errorf("file info: %w", err)
		}
	case spec.FlagPut:
		splits := Splits(content, c.config.SplitSize)
		for _, s := range splits {
			if err := WriteSplit(conn, s); err != nil {
				return state, fmt.Errorf("split %d: %w", s.ID, err)
			}
			result.Splits++
		}
		c.config.Emitter.OnDebug(fmt.Sprintf("sent %d splits (%d bytes)", len(splits), len(content)))
		if result.Ack, err = readBestEffort(conn, spec.MaxAckSize, deadline); err != nil {
			return state, fmt.Errorf("ack: %w", err)
		}
	}
	return state, nil
}

// readStatus reads the status, skipping the authentication acknowledgement
// when configured to.
func (c *Client) readStatus(r io.Reader) (int32, error) {
	if c.config.AuthAck {
		ack, err := readInt32(r)
		if err != nil {
			return 0, fmt.Errorf("auth ack: %w", err)
		}
		if ack != 0 {
			return ack, nil
		}
	}
	status, err := readInt32(r)
	if err != nil {
		return 0, fmt.Errorf("status: %w", err)
	}
	return status, nil
}

// readBestEffort reads an unframed body of at most max bytes. It stops at
// EOF, when max bytes have been read, when deadline expires, or when no more
// bytes arrive within spec.IdleTimeout of the previous ones. None of these
// is an error.
func readBestEffort(conn net.Conn, max int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, max)
	n := 0
	for n < max {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			var ne net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &ne) && ne.Timeout()) {
				break
			}
			return buf[:n], err
		}
		idle := time.Now().Add(spec.IdleTimeout)
		if !deadline.IsZero() && deadline.Before(idle) {
			idle = deadline
		}
		conn.SetReadDeadline(idle)
	}
	return buf[:n], nil
}
