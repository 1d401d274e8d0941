// Package canon implements the pure canonicalization function that turns a
// user-supplied service definition into a CanonicalDefinition with every
// recognized field normalized to a typed slot.
package canon

import (
	"path"
	"strconv"
	"strings"

	"github.com/vessel-labs/vessel/models"
)

// Result is what Canonicalize returns: the effective service name (which may
// differ from the input name when the image field carries path segments)
// alongside the canonical definition.
type Result struct {
	EffectiveName string
	Definition    *models.CanonicalDefinition
}

// Canonicalize normalizes a raw, loosely-typed service definition (as
// decoded from the deploy template's YAML/JSON) into a CanonicalDefinition.
// It is a pure function: the same (name, raw) always produces the same
// Result, and applying it twice to its own output is a no-op.
func Canonicalize(name string, raw map[string]interface{}) (*Result, error) {
	def := models.NewCanonicalDefinition()

	image, _ := raw["image"].(string)
	effectiveName := name
	if image == "" {
		image = name
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			effectiveName = path.Base(name)
		}
	}
	def.Image = image

	if v, ok := raw["cmd"]; ok {
		cmd, err := toCmdList(v)
		if err != nil {
			return nil, models.InvalidDefinition("cmd: " + err.Error())
		}
		def.Cmd = cmd
	}
	if v, ok := raw["entrypoint"]; ok {
		ep, err := toShellWords(v)
		if err != nil {
			return nil, models.InvalidDefinition("entrypoint: " + err.Error())
		}
		def.Entrypoint = ep
	}

	if v, ok := raw["env"]; ok {
		env, err := toStringMap(v)
		if err != nil {
			return nil, models.InvalidDefinition("env: " + err.Error())
		}
		def.Env = env
	}

	if v, ok := raw["volumes"]; ok {
		vols, err := toStringMap(v)
		if err != nil {
			return nil, models.InvalidDefinition("volumes: " + err.Error())
		}
		def.Volumes = vols
	}

	if v, ok := raw["privileged"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, models.InvalidDefinition("privileged must be a boolean")
		}
		def.Privileged = b
	}

	_, hasPort := raw["port"]
	_, hasPorts := raw["ports"]
	if hasPort && hasPorts {
		return nil, models.InvalidDefinition("both 'port' and 'ports' set")
	}

	switch {
	case hasPort:
		n, err := toPortNumber(raw["port"])
		if err != nil {
			return nil, models.InvalidDefinition("port: " + err.Error())
		}
		def.Ports[""] = models.FixedPort(n)
	case hasPorts:
		ports, err := canonicalizePorts(raw["ports"])
		if err != nil {
			return nil, err
		}
		def.Ports = ports
	default:
		def.Ports[""] = models.AssignPort
	}

	if v, ok := raw["wan_map"]; ok {
		bindings, err := canonicalizeWanMap(v)
		if err != nil {
			return nil, err
		}
		def.WanMap = bindings
	}

	known := map[string]bool{
		"image": true, "cmd": true, "entrypoint": true, "env": true,
		"volumes": true, "privileged": true, "port": true, "ports": true,
		"wan_map": true,
	}
	for k, v := range raw {
		if !known[k] {
			def.Kwargs[k] = v
		}
	}

	return &Result{EffectiveName: effectiveName, Definition: def}, nil
}

func toPortNumber(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, models.InvalidDefinition("expected integer port")
	}
}

func canonicalizePorts(v interface{}) (map[string]models.PortSpec, error) {
	out := map[string]models.PortSpec{}
	switch t := v.(type) {
	case []interface{}:
		// A bare list becomes {name: "assign"} for each list item used as a name.
		for _, item := range t {
			name, ok := item.(string)
			if !ok {
				return nil, models.InvalidDefinition("ports list entries must be strings")
			}
			out[name] = models.AssignPort
		}
	case map[string]interface{}:
		for name, pv := range t {
			if s, ok := pv.(string); ok && s == "assign" {
				out[name] = models.AssignPort
				continue
			}
			n, err := toPortNumber(pv)
			if err != nil {
				return nil, models.InvalidDefinition("ports." + name + ": " + err.Error())
			}
			out[name] = models.FixedPort(n)
		}
	default:
		return nil, models.InvalidDefinition("ports must be a list or a mapping")
	}
	if len(out) == 0 {
		out[""] = models.AssignPort
	}
	return out, nil
}

func canonicalizeWanMap(v interface{}) ([]models.WanBinding, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, models.InvalidDefinition("wan_map must be a mapping")
	}
	var out []models.WanBinding
	for key, nameVal := range m {
		ip, portStr, ok := strings.Cut(key, ":")
		if !ok {
			return nil, models.InvalidDefinition("wan_map key must be 'ip:port'")
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, models.InvalidDefinition("wan_map port: " + err.Error())
		}
		name, ok := nameVal.(string)
		if !ok {
			return nil, models.InvalidDefinition("wan_map value must be a port name")
		}
		out = append(out, models.WanBinding{IP: ip, Port: port, PortName: name})
	}
	return out, nil
}

func toStringMap(v interface{}) (map[string]string, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, models.InvalidDefinition("expected a mapping")
	}
	out := make(map[string]string, len(m))
	for k, vv := range m {
		s, ok := vv.(string)
		if !ok {
			s = toScalarString(vv)
		}
		out[k] = s
	}
	return out, nil
}

func toScalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// toCmdList implements cmd's "string input becomes /bin/sh -c original"
// rule; a list input is taken as already-split.
func toCmdList(v interface{}) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{"/bin/sh", "-c", s}, nil
	}
	return toListOfStrings(v)
}

// toShellWords implements entrypoint's "string input split shell-style"
// rule: a plain string is tokenized the way a shell would split it on
// whitespace, honoring single and double quotes.
func toShellWords(v interface{}) ([]string, error) {
	if s, ok := v.(string); ok {
		return splitShellWords(s), nil
	}
	return toListOfStrings(v)
}

func toListOfStrings(v interface{}) ([]string, error) {
	t, ok := v.([]interface{})
	if !ok {
		return nil, models.InvalidDefinition("expected a string or a list of strings")
	}
	out := make([]string, 0, len(t))
	for _, item := range t {
		s, ok := item.(string)
		if !ok {
			return nil, models.InvalidDefinition("expected a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

// splitShellWords tokenizes s the way a POSIX shell would, honoring single
// and double quotes but not performing variable expansion. No library in
// the dependency set provides this; it is a small, self-contained utility
// with no external parsing concerns worth a dependency.
func splitShellWords(s string) []string {
	var words []string
	var cur strings.Builder
	var quote rune
	inWord := false

	flush := func() {
		if inWord {
			words = append(words, cur.String())
			cur.Reset()
			inWord = false
		}
	}

	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			inWord = true
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
