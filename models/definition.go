package models

import "encoding/json"

// PortSpec is the canonical value of one entry in CanonicalDefinition.Ports:
// either a fixed container port number, or the sentinel "assign" meaning the
// runcfg synthesizer should pick one.
type PortSpec struct {
	Assign bool
	Port   int
}

// AssignPort is the canonical "assign" port sentinel.
var AssignPort = PortSpec{Assign: true}

// FixedPort wraps a concrete container port number.
func FixedPort(n int) PortSpec { return PortSpec{Port: n} }

// MarshalJSON renders the "assign" sentinel or the bare port number, the
// same shape the deploy template and the persisted store both use.
func (p PortSpec) MarshalJSON() ([]byte, error) {
	if p.Assign {
		return json.Marshal("assign")
	}
	return json.Marshal(p.Port)
}

// UnmarshalJSON accepts either the "assign" sentinel or an integer.
func (p *PortSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "assign" {
			return InvalidDefinition("invalid port spec string: " + s)
		}
		*p = AssignPort
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = FixedPort(n)
	return nil
}

// WanBinding is one entry of CanonicalDefinition.WanMap: an extra host
// (ip, port) bound to a named container port.
type WanBinding struct {
	IP       string
	Port     int
	PortName string
}

// CanonicalDefinition is the normalized, field-complete form of a
// user-supplied service definition. Two canonical definitions are equal iff
// every field compares deep-equal; canonicalization is idempotent and
// input-order-independent.
type CanonicalDefinition struct {
	Image      string
	Cmd        []string
	Entrypoint []string
	Env        map[string]string
	Volumes    map[string]string // name -> container path
	Privileged bool
	Ports      map[string]PortSpec // port name -> spec; "" is the default port
	WanMap     []WanBinding
	Kwargs     map[string]interface{} // unrecognized fields, preserved for plugins
}

// NewCanonicalDefinition returns a definition with all maps initialized,
// matching the canonicalizer's "absent input defaults to {}" rules for
// collection fields (Ports gets its own default of {"": assign} applied by
// the canonicalizer, not here).
func NewCanonicalDefinition() *CanonicalDefinition {
	return &CanonicalDefinition{
		Env:     map[string]string{},
		Volumes: map[string]string{},
		Ports:   map[string]PortSpec{},
		Kwargs:  map[string]interface{}{},
	}
}

// Copy returns a deep copy. A shallow copy would alias nested maps that
// callers (notably plugins) mutate in place.
func (d *CanonicalDefinition) Copy() *CanonicalDefinition {
	if d == nil {
		return nil
	}
	out := &CanonicalDefinition{
		Image:      d.Image,
		Privileged: d.Privileged,
		Cmd:        append([]string(nil), d.Cmd...),
		Entrypoint: append([]string(nil), d.Entrypoint...),
		Env:        make(map[string]string, len(d.Env)),
		Volumes:    make(map[string]string, len(d.Volumes)),
		Ports:      make(map[string]PortSpec, len(d.Ports)),
		WanMap:     append([]WanBinding(nil), d.WanMap...),
		Kwargs:     deepCopyValue(d.Kwargs).(map[string]interface{}),
	}
	for k, v := range d.Env {
		out.Env[k] = v
	}
	for k, v := range d.Volumes {
		out.Volumes[k] = v
	}
	for k, v := range d.Ports {
		out.Ports[k] = v
	}
	return out
}

// Equal reports structural equality field by field.
func (d *CanonicalDefinition) Equal(o *CanonicalDefinition) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.Image != o.Image || d.Privileged != o.Privileged {
		return false
	}
	if !stringSliceEqual(d.Cmd, o.Cmd) || !stringSliceEqual(d.Entrypoint, o.Entrypoint) {
		return false
	}
	if !stringMapEqual(d.Env, o.Env) || !stringMapEqual(d.Volumes, o.Volumes) {
		return false
	}
	if len(d.Ports) != len(o.Ports) {
		return false
	}
	for k, v := range d.Ports {
		ov, ok := o.Ports[k]
		if !ok || ov != v {
			return false
		}
	}
	if len(d.WanMap) != len(o.WanMap) {
		return false
	}
	for i := range d.WanMap {
		if d.WanMap[i] != o.WanMap[i] {
			return false
		}
	}
	return deepEqualValue(d.Kwargs, o.Kwargs)
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringMapEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
