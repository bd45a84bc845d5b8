package probe

import (
	"fmt"
	"time"

	"github.com/dfslab/dfsbench/pkg/probe/spec"
)

// Emitter is an interface for emitting the progress and the result of a probe.
type Emitter interface {
	// OnConnect is called when the TCP connection is established.
	OnConnect(server string)
	// OnResult is called when the exchange completed.
	OnResult(r *Result)
	// OnError is called on errors.
	OnError(err error)
	// OnDebug is called to print debug information.
	OnDebug(msg string)
}

// HumanReadable prints human-readable output to stdout.
// It can be configured to include debug output, too.
type HumanReadable struct {
	Debug bool
}

// OnConnect is called when the connection to the server is established.
func (HumanReadable) OnConnect(server string) {
	fmt.Printf("Connected to %s\n", server)
}

// OnResult prints the status, the bodies received and the connection stats.
func (HumanReadable) OnResult(r *Result) {
	if !r.OK {
		fmt.Printf("%s failed (status %d): %s\n", r.Flag, r.Status, r.FailureMessage)
	} else {
		fmt.Printf("%s succeeded (status %d)\n", r.Flag, r.Status)
	}
	switch {
	case !r.OK:
	case r.Flag == spec.FlagList:
		fmt.Printf("  file info: %d bytes, folder info: %d bytes\n", len(r.FileInfo), len(r.FolderInfo))
	case r.Flag == spec.FlagGet:
		fmt.Printf("  file info: %d bytes\n", len(r.FileInfo))
	case r.Flag == spec.FlagPut:
		fmt.Printf("  splits sent: %d, ack: %q\n", r.Splits, DecodeMessage(r.Ack))
	}
	fmt.Printf("  conn %s: sent %d bytes, received %d bytes in %s, rtt: %.2fms, minrtt: %.2fms\n",
		r.Conn.UUID, r.Conn.BytesSent, r.Conn.BytesReceived, r.Conn.Elapsed.Round(time.Millisecond),
		float32(r.Conn.RTT)/1000, float32(r.Conn.MinRTT)/1000)
}

// OnError is called on errors.
func (HumanReadable) OnError(err error) {
	fmt.Println(err)
}

// OnDebug is called to print debug information.
func (e HumanReadable) OnDebug(msg string) {
	if e.Debug {
		fmt.Printf("DEBUG: %s\n", msg)
	}
}

// Checks that HumanReadable implements Emitter.
var _ Emitter = &HumanReadable{}
