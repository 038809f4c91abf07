package region

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ServerName identifies one incarnation of a
// region server process. StartCode distinguishes
// a restarted process listening on the same
// host and port from its predecessor.
type ServerName struct {
	Host      string
	Port      int
	StartCode int64
}

// String returns host,port,startcode
func (serverName ServerName) String() string {
	return fmt.Sprintf("%s,%d,%d", serverName.Host, serverName.Port, serverName.StartCode)
}

// Address returns the host:port pair used to dial the server
func (serverName ServerName) Address() string {
	return net.JoinHostPort(serverName.Host, strconv.Itoa(serverName.Port))
}

// IsZero returns true if serverName is the zero value
func (serverName ServerName) IsZero() bool {
	return serverName == ServerName{}
}

// ParseServerName parses the output of ServerName.String
func ParseServerName(s string) (ServerName, error) {
	parts := strings.Split(s, ",")

	if len(parts) != 3 {
		return ServerName{}, fmt.Errorf("%q is not of the form host,port,startcode", s)
	}

	port, err := strconv.Atoi(parts[1])

	if err != nil {
		return ServerName{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}

	startCode, err := strconv.ParseInt(parts[2], 10, 64)

	if err != nil {
		return ServerName{}, fmt.Errorf("invalid start code in %q: %w", s, err)
	}

	return ServerName{Host: parts[0], Port: port, StartCode: startCode}, nil
}
