package main

import (
	"fmt"
	"net"
	"strconv"
)

func main() {
	Execute()
}

// splitPort extracts the numeric port from a "host:port" listen address, for
// advertising the relay's actual port over mDNS.
func splitPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("split listen address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("parse port: %w", err)
	}
	return port, nil
}
