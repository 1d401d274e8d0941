package models

// ServiceVersion is an immutable snapshot of a service's configuration at a
// point in time. Versions are never mutated after append except for
// InstanceCount and Data, which record runtime facts about the version
// rather than its configuration.
type ServiceVersion struct {
	// Number is this version's 1-based position within the owning service's
	// Versions slice at the moment it was derived (version_number in the
	// runcfg naming scheme).
	Number int

	// Definition is the frozen canonical definition for this version.
	Definition *CanonicalDefinition

	// Globals is a frozen copy of the deployment's globals at creation time.
	Globals *Globals

	// Data is a per-version data map, e.g. the app plugin's build id.
	// Inherited from the previous version on derive, then may be updated.
	Data map[string]interface{}

	// InstanceCount tracks how many instances have ever been started for
	// this version, used to number runcfg instance identifiers.
	InstanceCount int
}

// Derive produces a new, unappended ServiceVersion carrying canonical as its
// definition, a frozen copy of globals, and the previous version's Data
// inherited (shallow: a new map with the same entries, so plugins that add
// app_version_id on the new version don't retroactively alter the old one).
func (v *ServiceVersion) Derive(canonical *CanonicalDefinition, globals *Globals) *ServiceVersion {
	data := map[string]interface{}{}
	if v != nil {
		for k, val := range v.Data {
			data[k] = val
		}
	}
	return &ServiceVersion{
		Definition: canonical,
		Globals:    globals.Copy(),
		Data:       data,
	}
}
