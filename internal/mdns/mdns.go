// Package mdns provides optional mDNS/Bonjour service advertisement.
//
// When enabled, the host advertises its WebSocket frame server on the
// local network using DNS-SD, so viewers can discover it without
// manual IP entry. Opt-in: a terminal stream on the LAN is something
// the operator should consciously enable.
//
// The advertisement includes:
//   - Service type: _picoterm._tcp
//   - TXT records with the protocol version and grid geometry
package mdns

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type for picoterm hosts. Follows the
// standard Bonjour naming convention: _<service>._<protocol>
const ServiceType = "_picoterm._tcp"

// ProtocolVersion identifies the frame protocol for compatibility.
const ProtocolVersion = "1"

// Config holds configuration for mDNS advertisement.
type Config struct {
	// Port is the WebSocket server port to advertise.
	Port int

	// Rows and Cols are the advertised grid geometry, so a viewer can
	// size its window before the first frame arrives.
	Rows int
	Cols int

	// Name is a human-readable name for this host. Defaults to the
	// system hostname if empty.
	Name string
}

// Advertiser manages mDNS/DNS-SD service registration.
type Advertiser struct {
	config Config
	server *zeroconf.Server
	mu     sync.Mutex
}

// NewAdvertiser creates a new mDNS advertiser with the given
// configuration.
func NewAdvertiser(cfg Config) *Advertiser {
	return &Advertiser{config: cfg}
}

// Start begins advertising the service via mDNS. Safe to call multiple
// times; subsequent calls are no-ops if already running.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	name := a.config.Name
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			name = "picoterm"
		} else {
			name = hostname
		}
	}

	txtRecords := []string{
		"version=" + ProtocolVersion,
		"name=" + name,
		"rows=" + strconv.Itoa(a.config.Rows),
		"cols=" + strconv.Itoa(a.config.Cols),
	}

	server, err := zeroconf.Register(
		name,
		ServiceType,
		"local.",
		a.config.Port,
		txtRecords,
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	a.server = server
	return nil
}

// Stop stops the advertisement. Safe to call multiple times or on an
// advertiser that was never started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// IsRunning returns true if the advertiser is currently running.
func (a *Advertiser) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// DiscoveredHost represents a host found via mDNS discovery.
type DiscoveredHost struct {
	Name    string
	Host    string
	Port    int
	Rows    int
	Cols    int
	Version string
}

// URL returns the WebSocket URL for connecting to the host.
func (h DiscoveredHost) URL() string {
	return fmt.Sprintf("ws://%s:%d/ws", h.Host, h.Port)
}

// Discover searches for picoterm hosts on the local network until the
// context expires, then returns everything found. The viewer uses this
// when started without an explicit host address.
func Discover(ctx context.Context) ([]DiscoveredHost, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	var (
		hosts []DiscoveredHost
		mu    sync.Mutex
		wg    sync.WaitGroup
	)

	entries := make(chan *zeroconf.ServiceEntry)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for entry := range entries {
			host := DiscoveredHost{
				Name: entry.Instance,
				Port: entry.Port,
			}
			if len(entry.AddrIPv4) > 0 {
				host.Host = entry.AddrIPv4[0].String()
			} else if len(entry.AddrIPv6) > 0 {
				host.Host = entry.AddrIPv6[0].String()
			}
			for _, txt := range entry.Text {
				switch {
				case strings.HasPrefix(txt, "version="):
					host.Version = txt[len("version="):]
				case strings.HasPrefix(txt, "name="):
					host.Name = txt[len("name="):]
				case strings.HasPrefix(txt, "rows="):
					host.Rows, _ = strconv.Atoi(txt[len("rows="):])
				case strings.HasPrefix(txt, "cols="):
					host.Cols, _ = strconv.Atoi(txt[len("cols="):])
				}
			}
			mu.Lock()
			hosts = append(hosts, host)
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes the entries channel when the context is done.
	wg.Wait()

	return hosts, nil
}
