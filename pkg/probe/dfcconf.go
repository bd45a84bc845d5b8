package probe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// ErrNoServers is returned when a DFS client configuration has no server.
var ErrNoServers = errors.New("no server configured")

// Server is a DFS server entry of a client configuration.
type Server struct {
	Name    string
	Address string
}

// DFCConfig is the DFS client configuration (dfc.conf), which lists the
// servers and the user's credentials:
//
//	Server DFS1 127.0.0.1:10001
//	Username: Bob
//	Password: ComplextPassword
type DFCConfig struct {
	Servers  []Server
	Username string
	Password string
}

// ReadDFCConfig parses the DFS client configuration at path.
func ReadDFCConfig(path string) (*DFCConfig, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ParseDFCConfig(fp)
}

// ParseDFCConfig parses a DFS client configuration. Unknown lines are
// ignored. It fails if a server line is malformed or if no server is found.
func ParseDFCConfig(r io.Reader) (*DFCConfig, error) {
	conf := &DFCConfig{}
	s := bufio.NewScanner(r)
	line := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		switch {
		case strings.HasPrefix(text, "Server"):
			fields := strings.Fields(text)
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: malformed server entry %q", line, text)
			}
			if _, _, err := net.SplitHostPort(fields[2]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			conf.Servers = append(conf.Servers, Server{Name: fields[1], Address: fields[2]})
		case strings.HasPrefix(text, "Username:"):
			conf.Username = strings.TrimSpace(strings.TrimPrefix(text, "Username:"))
		case strings.HasPrefix(text, "Password:"):
			conf.Password = strings.TrimSpace(strings.TrimPrefix(text, "Password:"))
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(conf.Servers) == 0 {
		return nil, ErrNoServers
	}
	return conf, nil
}

// Lookup returns the address of the server named name.
func (c *DFCConfig) Lookup(name string) (string, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s.Address, true
		}
	}
	return "", false
}
