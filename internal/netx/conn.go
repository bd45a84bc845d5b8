// Package netx provides a TCP connection that counts transferred bytes and
// exposes its kernel TCP_INFO, used to report on raw protocol exchanges.
package netx

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	guuid "github.com/google/uuid"
	"github.com/m-lab/ndt-server/tcpinfox"
	"github.com/m-lab/tcp-info/tcp"
	"github.com/m-lab/uuid"
)

// Conn is an extended net.Conn that stores its connect time, a copy of the
// underlying socket's file descriptor, and counters for read/written bytes.
type Conn struct {
	net.Conn

	fp           *os.File
	connectTime  time.Time
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

// Stats summarizes a connection's activity.
type Stats struct {
	// UUID identifies the connection.
	UUID string
	// BytesSent and BytesReceived are application-level byte counts.
	BytesSent     uint64
	BytesReceived uint64
	// Elapsed is the time since the connection was established.
	Elapsed time.Duration
	// RTT and MinRTT are the kernel's smoothed and minimum RTT estimates,
	// in microseconds. They are zero if TCP_INFO is not available.
	RTT    uint32
	MinRTT uint32
}

// Dial connects to addr over TCP using dialer and returns a *Conn.
func Dial(ctx context.Context, dialer *net.Dialer, addr string) (*Conn, error) {
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := FromTCPConn(c.(*net.TCPConn))
	if err != nil {
		c.Close()
		return nil, err
	}
	return conn, nil
}

// FromTCPConn wraps tcpConn. The connect time is set to now.
func FromTCPConn(tcpConn *net.TCPConn) (*Conn, error) {
	return fromTCPConn(tcpConn)
}

// Read reads from the underlying net.Conn and updates the read bytes counter.
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.bytesRead.Add(uint64(n))
	return n, err
}

// Write writes to the underlying net.Conn and updates the written bytes counter.
func (c *Conn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.bytesWritten.Add(uint64(n))
	return n, err
}

// ByteCounters returns the read and written byte counters, in this order.
func (c *Conn) ByteCounters() (uint64, uint64) {
	return c.bytesRead.Load(), c.bytesWritten.Load()
}

// Close closes the underlying net.Conn and the duplicate file descriptor.
func (c *Conn) Close() error {
	return c.close()
}

// Info returns the TCPInfo struct associated with the underlying socket. If
// TCP_INFO isn't available on this platform, it returns
// tcpinfox.ErrNoSupport.
func (c *Conn) Info() (tcp.LinuxTCPInfo, error) {
	if c.fp == nil {
		return tcp.LinuxTCPInfo{}, tcpinfox.ErrNoSupport
	}
	tcpInfo, err := tcpinfox.GetTCPInfo(c.fp)
	if err != nil {
		return tcp.LinuxTCPInfo{}, err
	}
	return *tcpInfo, nil
}

// ConnectTime returns this connection's connect time.
func (c *Conn) ConnectTime() time.Time {
	return c.connectTime
}

// UUID returns an M-Lab UUID. On platforms not supporting SO_COOKIE, it
// returns a google/uuid as a fallback.
func (c *Conn) UUID() string {
	if c.fp != nil {
		if id, err := uuid.FromFile(c.fp); err == nil {
			return id
		}
	}
	return guuid.NewString()
}

// Stats returns the current connection stats. It must be called before
// Close for RTT values to be available.
func (c *Conn) Stats() Stats {
	read, written := c.ByteCounters()
	s := Stats{
		UUID:          c.UUID(),
		BytesSent:     written,
		BytesReceived: read,
		Elapsed:       time.Since(c.connectTime),
	}
	if info, err := c.Info(); err == nil {
		s.RTT = info.RTT
		s.MinRTT = info.MinRTT
	}
	return s
}
