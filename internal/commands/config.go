package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runShowConfig,
}

var initConfigCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	RunE:  runInitConfig,
}

func init() {
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(initConfigCmd)
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	defaultConfig := `# vessel Configuration

server:
  host: 0.0.0.0
  port: 8097
  read_timeout: 30s
  write_timeout: 0s
  shutdown_timeout: 15s
  debug: false
  host_ip: ""
  reloader: false
  systemd_unit_dir: /etc/systemd/system

store:
  state_dir: /srv/vstate
  data_dir: /srv/vdata

backend:
  docker_host: unix:///var/run/docker.sock
  slug_builder: vessel/slugbuilder:latest
  postgres_admin_dsn: ""

logging:
  level: info
  format: json
  output: stdout

security:
  rate_limit: 20
  allowed_origins:
    - "*"
  auth_key: ""
  jwt_secret: ""
`

	if err := os.WriteFile("config.yaml", []byte(defaultConfig), 0644); err != nil {
		return err
	}

	fmt.Println("✓ Created config.yaml")
	return nil
}
