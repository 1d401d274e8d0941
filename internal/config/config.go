// Package config provides configuration management for vessel.
//
// This package handles loading configuration from multiple sources:
//   - YAML configuration files
//   - Environment variables (VESSEL_ prefix, plus the literal names the
//     daemon has always recognized: HOST_IP, DEPLOY_DATA, DEPLOY_STATE,
//     DOCKER_HOST, RELOADER, SLUGBUILDER)
//   - Default values
//
// # Configuration Sources Priority
//
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Default values (hardcoded)
//  2. Configuration file (./config.yaml, ./configs/config.yaml, ~/.vessel/config.yaml, /etc/vessel/config.yaml)
//  3. Literal environment variables (HOST_IP, DEPLOY_DATA, DEPLOY_STATE, DOCKER_HOST, RELOADER, SLUGBUILDER)
//  4. VESSEL_-prefixed environment variables
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for the vessel daemon.
type Config struct {
	// Server contains HTTP edge configuration
	Server ServerConfig `mapstructure:"server"`

	// Store contains embedded persistence configuration
	Store StoreConfig `mapstructure:"store"`

	// Backend contains container backend configuration
	Backend BackendConfig `mapstructure:"backend"`

	// Logging contains logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Security contains auth and rate limiting settings
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Debug           bool          `mapstructure:"debug"`
	HostIP          string        `mapstructure:"host_ip"`
	Reloader        bool          `mapstructure:"reloader"`

	// SystemdUnitDir is where the initsystem plugin writes the unit files
	// it generates for services carrying the `Init` directive.
	SystemdUnitDir string `mapstructure:"systemd_unit_dir"`
}

// StoreConfig contains embedded store configuration.
type StoreConfig struct {
	// StateDir is the directory holding the bbolt database file (DEPLOY_STATE).
	StateDir string `mapstructure:"state_dir"`

	// DataDir is the volume_base directory for service volumes (DEPLOY_DATA).
	DataDir string `mapstructure:"data_dir"`
}

// BackendConfig contains the container backend connection settings.
type BackendConfig struct {
	// DockerHost is the backend connection URL (DOCKER_HOST), e.g. unix:///var/run/docker.sock.
	DockerHost string `mapstructure:"docker_host"`

	// SlugBuilder overrides the image used by the app plugin to build from source.
	SlugBuilder string `mapstructure:"slug_builder"`

	// PostgresAdminDSN is the superuser connection string the dbprovision
	// plugin uses to create roles/databases for Flynn-Postgres-style
	// resources. Empty disables the plugin.
	PostgresAdminDSN string `mapstructure:"postgres_admin_dsn"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SecurityConfig contains auth and rate limiting settings.
type SecurityConfig struct {
	// RateLimit is the maximum requests per second per client.
	RateLimit int `mapstructure:"rate_limit"`

	// AllowedOrigins are the CORS allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AuthKey is the bearer token the HTTP edge requires on every request
	// except the health check. Minted by `vesselkey`.
	AuthKey string `mapstructure:"auth_key"`

	// JWTSecret signs tokens handed to the gitreceive plugin's push hook.
	JWTSecret string `mapstructure:"jwt_secret"`
}

var cfg *Config

// Load reads configuration from a file, then layers environment overrides on top.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.vessel")
		v.AddConfigPath("/etc/vessel")
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			if !isFileNotFoundError(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("VESSEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindLiteralEnv(v)

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return cfg, nil
}

// bindLiteralEnv binds the unprefixed environment variables the daemon has
// always honored, so they take effect without the VESSEL_ prefix.
func bindLiteralEnv(v *viper.Viper) {
	_ = v.BindEnv("server.host_ip", "HOST_IP")
	_ = v.BindEnv("store.data_dir", "DEPLOY_DATA")
	_ = v.BindEnv("store.state_dir", "DEPLOY_STATE")
	_ = v.BindEnv("backend.docker_host", "DOCKER_HOST")
	_ = v.BindEnv("server.reloader", "RELOADER")
	_ = v.BindEnv("backend.slug_builder", "SLUGBUILDER")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8097)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0) // streaming responses must not be write-deadlined
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.systemd_unit_dir", "/etc/systemd/system")

	v.SetDefault("store.state_dir", "/srv/vstate")
	v.SetDefault("store.data_dir", "/srv/vdata")

	v.SetDefault("backend.docker_host", "unix:///var/run/docker.sock")
	v.SetDefault("backend.slug_builder", "vessel/slugbuilder:latest")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("security.rate_limit", 20)
	v.SetDefault("security.allowed_origins", []string{"*"})
}

func isFileNotFoundError(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file")
}

// Get returns the currently loaded configuration. Panics if Load has not run.
func Get() *Config {
	if cfg == nil {
		panic("config: Get called before Load")
	}
	return cfg
}
