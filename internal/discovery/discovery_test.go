package discovery

import "testing"

func TestRegisterAndDiscover(t *testing.T) {
	a := NewInMemoryAdapter()
	if err := a.Register("controller", "10.0.0.5:8097"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	addr, ok := a.Discover("controller")
	if !ok || addr != "10.0.0.5:8097" {
		t.Errorf("expected to discover controller at 10.0.0.5:8097, got %q ok=%v", addr, ok)
	}
}

func TestDiscoverUnregisteredReturnsNotOK(t *testing.T) {
	a := NewInMemoryAdapter()
	_, ok := a.Discover("nope")
	if ok {
		t.Errorf("expected ok=false for unregistered name")
	}
}

func TestDeregister(t *testing.T) {
	a := NewInMemoryAdapter()
	_ = a.Register("svc", "10.0.0.1:80")
	a.Deregister("svc")
	_, ok := a.Discover("svc")
	if ok {
		t.Errorf("expected svc to be gone after deregister")
	}
}

func TestHostIPOverride(t *testing.T) {
	ip, err := HostIP("192.168.1.50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ip != "192.168.1.50" {
		t.Errorf("expected override ip, got %q", ip)
	}
}
