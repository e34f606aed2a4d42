package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/hashicorp/mdns"
)

// serviceType is the mDNS service type the relay advertises itself under.
const serviceType = "_muco-server._tcp"

// startDiscovery advertises this relay as _muco-server._tcp.local. on
// port, grounded on the other_examples mdns.Manager pattern of wrapping
// hashicorp/mdns's advertise API behind a small typed constructor. The
// returned shutdown func stops advertising; call it during graceful
// shutdown.
func startDiscovery(port int) (shutdown func(), err error) {
	host, err := os.Hostname()
	if err != nil {
		host = "muco-server"
	}

	ips, err := localIPv4s()
	if err != nil {
		return nil, fmt.Errorf("discovery: resolve local addresses: %w", err)
	}

	service, err := mdns.NewMDNSService(host, serviceType, "", "", port, ips, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: build service: %w", err)
	}

	srv, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("discovery: start server: %w", err)
	}

	slog.Info("mdns advertising", "service", serviceType, "port", port, "host", host)
	return func() {
		if err := srv.Shutdown(); err != nil {
			slog.Warn("mdns shutdown error", "err", err)
		}
	}, nil
}

// localIPv4s returns every non-loopback IPv4 address on the host, the set
// hashicorp/mdns advertises A records for.
func localIPv4s() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			ips = append(ips, v4)
		}
	}
	return ips, nil
}
