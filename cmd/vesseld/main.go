package main

import (
	"fmt"
	"os"

	"github.com/vessel-labs/vessel/internal/commands"
	"github.com/vessel-labs/vessel/internal/version"
)

// @title vessel API
// @version 0.1.0
// @description vessel is a single-host container orchestration controller: it
// @description takes a deploy template, canonicalizes and persists it, runs
// @description it through a plugin chain (requirements, generated secrets,
// @description service discovery, routing, database provisioning, ...), and
// @description drives the local Docker daemon to bring the described services
// @description up.
// @description
// @description ## Streaming
// @description /create, /setup, /upload, and plugin-provided /<plugin>/<func>
// @description routes stream progress as newline-delimited JSON events, or as
// @description plaintext with `Accept: text/plain`.
// @description
// @description ## Authentication
// @description All routes except /health require a bearer token: `Authorization: Bearer <token>`.
// @description The token is minted with `vesseld key rotate`.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8097
// @BasePath /

// @schemes http

// @tag.name Deployments
// @tag.description Create and inspect deployments

// @tag.name Setup
// @tag.description Apply service definitions and globals to a deployment

// @tag.name Plugins
// @tag.description Plugin-provided HTTP functions

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime
	version.GitCommit = GitCommit

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
