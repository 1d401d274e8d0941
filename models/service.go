package models

// Service belongs to a Deployment and is identified by a name unique within
// it. A service is always in exactly one of three states: none (not yet
// created), Active (>=1 version, not held), or Held (no versions, a pending
// HeldVersion and a human-readable Reason).
type Service struct {
	Name string

	// Versions is append-only; empty while held.
	Versions []*ServiceVersion

	// Instances is append-only per active version.
	Instances []*ServiceInstance

	Held         bool
	HeldReason   string
	HeldVersion  *ServiceVersion
}

// NewService returns an empty, not-yet-active service.
func NewService(name string) *Service {
	return &Service{Name: name}
}

// Latest returns the most recently appended version, or nil if none exists.
func (s *Service) Latest() *ServiceVersion {
	if len(s.Versions) == 0 {
		return nil
	}
	return s.Versions[len(s.Versions)-1]
}

// Derive produces a new, unappended version from the service's current
// latest (or a fresh first version if none exists).
func (s *Service) Derive(canonical *CanonicalDefinition, globals *Globals) *ServiceVersion {
	return s.Latest().Derive(canonical, globals)
}

// Hold transitions the service into the Held state. Fails with
// InvalidState if the service already has appended versions: a service
// with history cannot be held again, only a fresh or already-held one.
func (s *Service) Hold(reason string, version *ServiceVersion) error {
	if len(s.Versions) > 0 {
		return InvalidState("cannot hold service " + s.Name + ": already has versions")
	}
	s.Held = true
	s.HeldReason = reason
	s.HeldVersion = version
	return nil
}

// AppendVersion appends version to Versions, numbering it, and clears any
// hold. This is the sole Active-state transition.
func (s *Service) AppendVersion(version *ServiceVersion) {
	version.Number = len(s.Versions) + 1
	s.Versions = append(s.Versions, version)
	s.Held = false
	s.HeldReason = ""
	s.HeldVersion = nil
}

// AppendInstance appends a new running instance bound to the latest version.
func (s *Service) AppendInstance(id, backendHandle, name string) *ServiceInstance {
	latest := s.Latest()
	versionNumber := 0
	if latest != nil {
		versionNumber = latest.Number
		latest.InstanceCount++
	}
	inst := &ServiceInstance{ID: id, BackendHandle: backendHandle, Name: name, VersionNumber: versionNumber}
	s.Instances = append(s.Instances, inst)
	return inst
}

// RemoveInstance removes an instance by id, returning it if found.
func (s *Service) RemoveInstance(id string) *ServiceInstance {
	for i, inst := range s.Instances {
		if inst.ID == id {
			s.Instances = append(s.Instances[:i], s.Instances[i+1:]...)
			return inst
		}
	}
	return nil
}

// NextInstanceNumber returns the instance number to use when naming the
// next runcfg for this service: the latest version's current instance
// count if a version exists, 1 otherwise.
func (s *Service) NextInstanceNumber() int {
	if latest := s.Latest(); latest != nil {
		if latest.InstanceCount > 0 {
			return latest.InstanceCount
		}
	}
	return 1
}
