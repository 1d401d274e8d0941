package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"

	"github.com/vessel-labs/vessel/internal/api"
	"github.com/vessel-labs/vessel/internal/auth"
	"github.com/vessel-labs/vessel/internal/backend"
	"github.com/vessel-labs/vessel/internal/config"
	"github.com/vessel-labs/vessel/internal/controller"
	"github.com/vessel-labs/vessel/internal/discovery"
	"github.com/vessel-labs/vessel/internal/plugin"
	"github.com/vessel-labs/vessel/internal/progress"
	"github.com/vessel-labs/vessel/internal/store"
	"github.com/vessel-labs/vessel/plugins/app"
	"github.com/vessel-labs/vessel/plugins/dbprovision"
	discoveryplugin "github.com/vessel-labs/vessel/plugins/discovery"
	"github.com/vessel-labs/vessel/plugins/execresource"
	"github.com/vessel-labs/vessel/plugins/generate"
	"github.com/vessel-labs/vessel/plugins/gitreceive"
	"github.com/vessel-labs/vessel/plugins/initsystem"
	"github.com/vessel-labs/vessel/plugins/once"
	"github.com/vessel-labs/vessel/plugins/requires"
	"github.com/vessel-labs/vessel/plugins/routing"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP edge",
	Long:  `Start vessel's HTTP edge: opens the embedded store, connects to the Docker backend, wires the plugin chain, and runs on_system_init before serving requests.`,
	RunE:  runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	root, err := buildRoot(cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble controller root: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	pc := progress.New()
	go logStartupEvents(pc)
	if err := root.Start(ctx, pc); err != nil {
		pc.Done()
		return fmt.Errorf("controller startup failed: %w", err)
	}
	pc.Done()
	log.Println("controller started")

	server := api.New(cfg, root)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func logStartupEvents(pc *progress.Context) {
	for ev := range pc.Events() {
		if ev.IsError() {
			log.Printf("startup error: %s", ev.Text)
			continue
		}
		log.Printf("startup: %s", ev.Text)
	}
}

// buildRoot opens the store, connects the Docker backend, registers the
// plugin chain, and assembles the controller.Root that both the on_system_init
// pass and the HTTP edge drive.
func buildRoot(cfg *config.Config) (*controller.Root, error) {
	if err := os.MkdirAll(cfg.Store.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	st, err := store.Open(filepath.Join(cfg.Store.StateDir, "vessel.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := bootstrapAuthKey(st, cfg); err != nil {
		return nil, err
	}

	be, err := backend.NewDockerBackend(cfg.Backend.DockerHost)
	if err != nil {
		return nil, fmt.Errorf("connect docker backend: %w", err)
	}

	// The app plugin builds slugs by streaming a tar into a container
	// directly, an operation outside backend.Backend's Prepare/Start/Once
	// surface, so it gets its own client against the same host.
	dockerClient, err := client.NewClientWithOpts(
		client.WithHost(cfg.Backend.DockerHost),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("connect docker client for app builds: %w", err)
	}

	disc := discovery.NewInMemoryAdapter()

	registry := plugin.NewRegistry()
	registry.Register(generate.New())
	registry.Register(once.New())
	registry.Register(discoveryplugin.New(disc))
	registry.Register(initsystem.New(cfg.Server.SystemdUnitDir))
	registry.Register(app.New(disc, dockerClient, cfg.Backend.SlugBuilder))
	registry.Register(gitreceive.New(cfg.Security.JWTSecret))
	registry.Register(execresource.New())
	registry.Register(routing.New(disc))
	if cfg.Backend.PostgresAdminDSN != "" {
		registry.Register(dbprovision.New(cfg.Backend.PostgresAdminDSN))
	}
	// requires runs last so the rest of the chain's own PostSetup hooks see
	// a held service's dependencies resolve first.
	registry.Register(requires.New())

	hostIP, err := discovery.HostIP(cfg.Server.HostIP)
	if err != nil {
		return nil, fmt.Errorf("resolve host ip: %w", err)
	}
	apiAddr := fmt.Sprintf("%s:%d", hostIP, cfg.Server.Port)

	return controller.NewRoot(st, be, registry, disc, cfg.Store.DataDir, cfg.Server.HostIP, apiAddr), nil
}

// bootstrapAuthKey ensures the store carries a bearer token before the HTTP
// edge starts accepting requests. A configured security.auth_key wins;
// otherwise one is generated and logged once, since there is no other way
// to hand it to the operator on first boot.
func bootstrapAuthKey(st *store.Store, cfg *config.Config) error {
	tx, err := st.Begin(true)
	if err != nil {
		return fmt.Errorf("open store for auth bootstrap: %w", err)
	}

	existing, err := tx.AuthKey()
	if err != nil {
		_ = tx.Abort()
		return err
	}
	if existing != "" {
		return tx.Abort()
	}

	key := cfg.Security.AuthKey
	if key == "" {
		key, err = auth.GenerateKey()
		if err != nil {
			_ = tx.Abort()
			return fmt.Errorf("generate auth key: %w", err)
		}
		log.Printf("generated process auth key (store it now, it will not be shown again): %s", key)
	}

	if err := tx.SetAuthKey(key); err != nil {
		_ = tx.Abort()
		return err
	}
	return tx.Commit()
}
