// Package vessel is a single-host container orchestration controller.
//
// # Overview
//
// vessel places services onto one host's Docker daemon from a deploy
// template: a deployment's globals and a map of named service definitions.
// It canonicalizes each definition, runs it through a plugin chain
// (requirements, generated secrets, service discovery, routing, database
// provisioning, ...), synthesizes the container configuration the chain
// agreed on, and drives the backend to bring it up. State is kept in an
// embedded bbolt store; there is no external database to run.
//
// # Architecture
//
//	┌─────────────────┐
//	│   HTTP edge     │
//	│  (Echo REST)    │
//	└────────┬────────┘
//	         │
//	┌────────▼────────┐       ┌─────────────────┐
//	│  Controller     │◄──────┤  Plugin chain   │
//	│  (root/iface)   │       │  (hooks)        │
//	└────────┬────────┘       └─────────────────┘
//	         │
//	┌────────▼────────┐       ┌─────────────────┐
//	│  Embedded store │       │  Docker backend │
//	│  (bbolt)        │       │  (docker/docker)│
//	└─────────────────┘       └─────────────────┘
//
// # Core Features
//
// Controller:
//   - Deployments hold a globals document and a map of named services
//   - Each service tracks its current and held setup versions
//   - Setup proceeds through a fixed sequence of plugin hooks, any of which
//     may hold a service back until some precondition is met
//
// Plugin chain:
//   - require: hold a service until its named dependencies are ready
//   - generate: mint deployment secrets once, on first use
//   - execresource/once: run-once jobs and wait-for-reachable preconditions
//   - discovery: register resolved ports with the discovery adapter
//   - routing: push public domain bindings to an external HTTP router
//   - dbprovision: provision role/database pairs against an admin DSN
//   - gitreceive: install the push-ingestion service and validate push tokens
//   - app: build-from-source services via an uploaded archive
//   - initsystem: keep instances running across host reboots
//
// HTTP edge:
//   - GET  /list                    list deployments, services, instances
//   - PUT  /create                  create a deployment
//   - POST /setup                   apply globals and service definitions
//   - POST /upload                  multipart archive upload for app builds
//   - any  /<plugin_name>/<func>    plugin-provided functions
//
// /create, /setup, /upload, and plugin functions stream progress as
// newline-delimited JSON events, or as plaintext with Accept: text/plain.
// Every route but /health requires a bearer token, minted with `vesseld key
// rotate` and stored in the embedded store's root.
//
// # Usage
//
// Start the daemon:
//
//	vesseld server --config config.yaml
//
// Generate and store a bearer token:
//
//	vesseld key rotate
//
// Validate a deploy-template request body without sending it:
//
//	vesseld validate setup deploy.json
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (./config.yaml, ./configs/config.yaml, ~/.vessel/config.yaml, /etc/vessel/config.yaml)
//   - The literal environment variables the daemon has always honored
//     (HOST_IP, DEPLOY_DATA, DEPLOY_STATE, DOCKER_HOST, RELOADER, SLUGBUILDER)
//   - VESSEL_-prefixed environment variables
//
// Example configuration:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8097
//	store:
//	  state_dir: /srv/vstate
//	  data_dir: /srv/vdata
//	backend:
//	  docker_host: unix:///var/run/docker.sock
//
// # Development
//
// Run tests:
//
//	go test ./...
//
// Build the binary:
//
//	go build -o vesseld ./cmd/vesseld
//
// # Technology Stack
//
//   - Go 1.25+
//   - Echo v4 (HTTP edge)
//   - bbolt (embedded store)
//   - docker/docker (container backend)
//   - gorm + Postgres driver (dbprovision plugin)
//   - golang-jwt (gitreceive push tokens)
//
// # License
//
// vessel is open source software.
package vessel
