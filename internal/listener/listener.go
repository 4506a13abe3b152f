package listener

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var ErrNoFreePort = errors.New("no free port")

// Listen binds host:preferred, moving up one port at a time on failure, for
// at most attempts ports. It returns the listener and the bound port.
func Listen(host string, preferred, attempts int) (net.Listener, int, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		port := preferred + i
		if port > 65535 {
			break
		}
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return ln, ln.Addr().(*net.TCPAddr).Port, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, 0, fmt.Errorf("%w from %d", ErrNoFreePort, preferred)
	}
	return nil, 0, fmt.Errorf("%w in %d..%d: %v", ErrNoFreePort, preferred, preferred+attempts-1, lastErr)
}
