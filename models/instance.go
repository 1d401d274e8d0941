package models

// ServiceInstance is a running or previously-running container fulfilling a
// specific version of a service.
type ServiceInstance struct {
	// ID is core-assigned, stable across the instance's lifetime.
	ID string

	// BackendHandle is the opaque token the backend needs to terminate it.
	BackendHandle string

	// Name is the runcfg name the instance was started under
	// ({deploy_id}-{service_name}-{version_number}-{instance_number}),
	// used by plugins (e.g. initsystem) that need the backend-visible
	// container name rather than the opaque handle.
	Name string

	// VersionNumber back-references the owning ServiceVersion by Number.
	VersionNumber int
}
