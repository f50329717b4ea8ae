package fixture

import (
	"fmt"
	"net"
)

const maxPort = 65535

// FreePortAbove returns the first port at or above start that can currently be bound on the
// loopback interface.
func FreePortAbove(start int) (int, error) {
	if start < 1 {
		start = 1
	}
	for port := start; port <= maxPort; port++ {
		if portIsFree(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port at or above %d", start)
}

// FreePort returns a port chosen by the operating system.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func portIsFree(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
