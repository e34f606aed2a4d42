package main

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

// serviceType matches the relay's advertised mDNS service (server/discovery.go).
const serviceType = "_muco-server._tcp"

// DiscoveryEventKind distinguishes a newly seen peer from one that has gone
// stale.
type DiscoveryEventKind int

const (
	ServerDiscovered DiscoveryEventKind = iota
	ServerLost
)

// DiscoveryEvent is published to every subscriber of a Discovery's bus.
type DiscoveryEvent struct {
	Kind DiscoveryEventKind
	Host string // host:port, ready to dial
	Name string
}

// Discovery runs a background mDNS browse of _muco-server._tcp.local. and
// fans out sighting/eviction events, grounded on the same publish-to-many-
// subscribers shape as the server's Hub (C5), but unbounded-subscriber since
// there is normally exactly one consumer (Connection's step 1).
type Discovery struct {
	mu         sync.Mutex
	lastSeen   map[string]time.Time
	subs       []chan DiscoveryEvent
	selfAddrs  map[string]struct{}
	pollEvery  time.Duration
	staleAfter time.Duration
}

// NewDiscovery returns a Discovery ready to Run.
func NewDiscovery() *Discovery {
	self := map[string]struct{}{}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok {
				self[ipNet.IP.String()] = struct{}{}
			}
		}
	}
	return &Discovery{
		lastSeen:   make(map[string]time.Time),
		selfAddrs:  self,
		pollEvery:  500 * time.Millisecond,
		staleAfter: 30 * time.Second,
	}
}

// Subscribe returns a channel that receives every future discovery event.
func (d *Discovery) Subscribe() <-chan DiscoveryEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan DiscoveryEvent, 16)
	d.subs = append(d.subs, ch)
	return ch
}

// Run polls mDNS every pollEvery until ctx is canceled, publishing
// ServerDiscovered the first time a host is seen (later sightings only
// refresh its last-seen time) and ServerLost for hosts that haven't been
// seen within staleAfter.
func (d *Discovery) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce()
			d.evictStale()
		}
	}
}

func (d *Discovery) pollOnce() {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		for entry := range entries {
			d.observe(entry)
		}
		close(done)
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = 400 * time.Millisecond
	params.DisableIPv6 = true

	if err := mdns.Query(params); err != nil {
		slog.Debug("mdns query failed", "err", err)
	}
	close(entries)
	<-done
}

func (d *Discovery) observe(entry *mdns.ServiceEntry) {
	if entry.AddrV4 == nil {
		return
	}
	ip := entry.AddrV4.String()
	host := net.JoinHostPort(ip, strconv.Itoa(entry.Port))
	d.mu.Lock()
	if _, isSelf := d.selfAddrs[ip]; isSelf {
		d.mu.Unlock()
		return
	}
	_, known := d.lastSeen[host]
	d.lastSeen[host] = time.Now()
	d.mu.Unlock()

	if !known {
		d.publish(DiscoveryEvent{Kind: ServerDiscovered, Host: host, Name: entry.Name})
	}
}

func (d *Discovery) evictStale() {
	now := time.Now()
	var lost []string
	d.mu.Lock()
	for ip, seen := range d.lastSeen {
		if now.Sub(seen) > d.staleAfter {
			delete(d.lastSeen, ip)
			lost = append(lost, ip)
		}
	}
	d.mu.Unlock()

	for _, ip := range lost {
		d.publish(DiscoveryEvent{Kind: ServerLost, Host: ip})
	}
}

func (d *Discovery) publish(ev DiscoveryEvent) {
	d.mu.Lock()
	subs := append([]chan DiscoveryEvent(nil), d.subs...)
	d.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

