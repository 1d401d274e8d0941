package models

import "encoding/json"

// Globals is the deployment-wide, free-form tree of settings and plugin
// directives. The core schematizes only the Env key; everything else
// (Domains, Generate, Flynn-Postgres, Includes, Exec, ...) is opaque and
// passed through to plugins verbatim.
type Globals struct {
	// Env maps service name -> env var name -> value, consumed directly by
	// runcfg synthesis before the service's own env and plugin contributions.
	Env map[string]map[string]string `json:"Env,omitempty"`

	// Directives holds every other capitalized top-level key, untouched.
	Directives map[string]interface{} `json:"-"`
}

// NewGlobals returns an empty, fully-initialized Globals value.
func NewGlobals() *Globals {
	return &Globals{
		Env:        map[string]map[string]string{},
		Directives: map[string]interface{}{},
	}
}

// Copy returns a deep copy so frozen snapshots on ServiceVersion cannot be
// mutated by later globals changes.
func (g *Globals) Copy() *Globals {
	if g == nil {
		return nil
	}
	out := &Globals{
		Env:        make(map[string]map[string]string, len(g.Env)),
		Directives: deepCopyValue(g.Directives).(map[string]interface{}),
	}
	for svc, env := range g.Env {
		m := make(map[string]string, len(env))
		for k, v := range env {
			m[k] = v
		}
		out.Env[svc] = m
	}
	return out
}

// Equal reports structural equality, used by set_globals to decide whether
// anything actually changed.
func (g *Globals) Equal(o *Globals) bool {
	if g == nil || o == nil {
		return g == o
	}
	if len(g.Env) != len(o.Env) {
		return false
	}
	for svc, env := range g.Env {
		oenv, ok := o.Env[svc]
		if !ok || !stringMapEqual(env, oenv) {
			return false
		}
	}
	return deepEqualValue(g.Directives, o.Directives)
}

// MarshalJSON renders Globals as the flat wire shape the service-file
// format and the /setup request body both use: every directive as a
// top-level capitalized key, plus "Env" for the schematized field.
func (g *Globals) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(g.Directives)+1)
	for k, v := range g.Directives {
		out[k] = v
	}
	out["Env"] = g.Env
	return json.Marshal(out)
}

// UnmarshalJSON accepts the same flat shape, splitting out "Env" into its
// schematized field and keeping every other key as an opaque directive.
func (g *Globals) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := NewGlobals()
	if envRaw, ok := raw["Env"]; ok {
		var env map[string]map[string]string
		if err := json.Unmarshal(envRaw, &env); err != nil {
			return err
		}
		out.Env = env
		delete(raw, "Env")
	}
	for k, v := range raw {
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		out.Directives[k] = val
	}
	*g = *out
	return nil
}
