// Package netutil selects the TCP address the API server binds to.
package netutil

import (
	"fmt"
	"net"
)

// SelectBindAddr returns host:port when the port is free, otherwise
// tries up to fallbackTries consecutive ports. An agent restarted while
// its predecessor still holds the port comes up on port+1 instead of
// failing.
func SelectBindAddr(host string, port, fallbackTries int) (string, error) {
	for i := 0; i <= fallbackTries; i++ {
		addr := fmt.Sprintf("%s:%d", host, port+i)
		if addrAvailable(addr) {
			return addr, nil
		}
	}
	return "", fmt.Errorf("no free API port in %d-%d on %s", port, port+fallbackTries, host)
}

func addrAvailable(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
