package controller

import "strings"

// applyTemplate substitutes every "{NAME}" occurrence in s using vars. A
// reference to an unknown name is left untouched, matching the source's
// permissive substitution semantics: plugins routinely provide only a
// subset of the variables any given definition references.
func applyTemplate(s string, vars map[string]string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func applyTemplateToSlice(items []string, vars map[string]string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = applyTemplate(s, vars)
	}
	return out
}

func applyTemplateToMap(m map[string]string, vars map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[applyTemplate(k, vars)] = applyTemplate(v, vars)
	}
	return out
}
