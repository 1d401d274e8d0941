// Package discovery implements the service-discovery adapter boundary (C9):
// discover(name) -> address plus registration, consumed by the discovery
// plugin and by the controller root's own startup registration.
package discovery

import (
	"fmt"
	"net"
	"sync"
)

// Adapter is the service-discovery boundary the controller root and the
// discovery plugin depend on.
type Adapter interface {
	// Discover resolves a registered name to its address. ok is false if
	// nothing is registered under that name.
	Discover(name string) (address string, ok bool)

	// Register records name -> address, overwriting any previous value.
	Register(name, address string) error

	// Deregister removes a previously registered name.
	Deregister(name string)
}

// InMemoryAdapter is a process-local discovery adapter: a registry the
// controller root seeds at startup (its own API address) and the discovery
// plugin adds to as services become active. Production deployments
// wire this against the real service-discovery coordinator; the interface
// boundary is all the core depends on.
type InMemoryAdapter struct {
	mu        sync.RWMutex
	addresses map[string]string
}

// NewInMemoryAdapter returns an empty adapter.
func NewInMemoryAdapter() *InMemoryAdapter {
	return &InMemoryAdapter{addresses: map[string]string{}}
}

func (a *InMemoryAdapter) Discover(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	addr, ok := a.addresses[name]
	return addr, ok
}

func (a *InMemoryAdapter) Register(name, address string) error {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return fmt.Errorf("discovery: register %s: invalid address %q: %w", name, address, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addresses[name] = address
	return nil
}

func (a *InMemoryAdapter) Deregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.addresses, name)
}

// HostIP resolves the host's LAN IP, honoring the HOST_IP override. Grounds
// runcfg synthesis's get_host_ip() step and the controller root's discovery
// self-registration.
func HostIP(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("discovery: resolve host ip: %w", err)
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("discovery: no non-loopback IPv4 address found")
}
