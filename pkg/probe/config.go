package probe

import (
	"time"
)

// Config is the configuration for a Client.
type Config struct {
	// Server is the host:port of the DFS server to probe. If empty,
	// spec.DefaultServer is used.
	Server string

	// Username and Password are the credentials sent with every command.
	Username string
	Password string

	// Timeout bounds a whole exchange, from dial to the last read. If zero,
	// spec.DefaultTimeout is used.
	Timeout time.Duration

	// SplitSize is the maximum content size of a PUT split. If zero,
	// spec.DefaultSplitSize is used.
	SplitSize int

	// AuthAck makes the client expect the int32 authentication
	// acknowledgement (0) some servers send before the status. A non-zero
	// acknowledgement is treated as the status.
	AuthAck bool

	// Emitter is the interface used to emit the progress and the result of a
	// probe. It can be overridden to provide a custom output.
	Emitter Emitter
}
