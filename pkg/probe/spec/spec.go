// Package spec contains constants for the DFS wire protocol.
package spec

import (
	"strings"
	"time"
)

const (
	// StatusOK is the response status of a successful command.
	StatusOK = 1

	// MaxFailureBody is the maximum number of bytes read as the error message
	// after a non-OK status.
	MaxFailureBody = 1024

	// MaxAckSize is the maximum number of bytes read as the acknowledgement
	// after a PUT upload.
	MaxAckSize = 1024

	// MaxFrameSize is the maximum length accepted in a length prefix. Larger
	// or negative values are treated as a protocol error.
	MaxFrameSize = 64 << 20

	// NullFilename is the FILENAME token used when no file is addressed.
	NullFilename = "NULL"

	// DefaultFolder is the FOLDER token used when no folder is given.
	DefaultFolder = "/"

	// DefaultServer is the address of the first server of a local cluster.
	DefaultServer = "localhost:10001"

	// DefaultSplitSize is the default size of a PUT split. It is the largest
	// split content a DFS server accepts.
	DefaultSplitSize = 512

	// DefaultTimeout bounds a whole probe exchange.
	DefaultTimeout = 10 * time.Second

	// IdleTimeout bounds the wait for more bytes of an unframed body once
	// some bytes have been received.
	IdleTimeout = 200 * time.Millisecond
)

// Flag selects the command executed by the server.
type Flag int32

const (
	// FlagList lists the files and folders of a folder.
	FlagList = Flag(0)
	// FlagGet retrieves a file.
	FlagGet = Flag(1)
	// FlagPut stores a file.
	FlagPut = Flag(2)
	// FlagMkdir creates a folder.
	FlagMkdir = Flag(3)
	// FlagAuth only checks the credentials.
	FlagAuth = Flag(4)
)

var flagNames = map[Flag]string{
	FlagList:  "list",
	FlagGet:   "get",
	FlagPut:   "put",
	FlagMkdir: "mkdir",
	FlagAuth:  "auth",
}

func (f Flag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFlag returns the Flag named s, case-insensitively.
func ParseFlag(s string) (Flag, bool) {
	for f, name := range flagNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return f, true
		}
	}
	return 0, false
}

// Marker is the first byte of a PUT split frame.
type Marker uint8

const (
	// MarkerInitial marks the first split of an upload, or the only one.
	MarkerInitial = Marker(0)
	// MarkerChunk marks an intermediate split.
	MarkerChunk = Marker(1)
	// MarkerFinal marks the last split of a multi-split upload.
	MarkerFinal = Marker(2)
)
