// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/concert/lib/version"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// EnvConfigPath names the environment variable Load reads.
const EnvConfigPath = "CONCERT_CONFIG"

// Config is the master configuration for concert binaries.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	Conductor      ConductorConfig      `yaml:"conductor"`
	ServiceManager ServiceManagerConfig `yaml:"service_manager"`
	Client         ClientConfig         `yaml:"client"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for concert data.
	Root string `yaml:"root"`

	// Run holds sockets. Every daemon socket defaults to a file here.
	Run string `yaml:"run"`

	// State holds files that survive restarts: the service ledger and
	// archived service output.
	State string `yaml:"state"`
}

// ConductorConfig configures concert-conductor.
type ConductorConfig struct {
	// ControllerID is the identity this conductor presents in
	// invitations. Client whitelists and blacklists match against it.
	ControllerID string `yaml:"controller_id"`

	// ExpectedVersion is the protocol revision clients must report.
	ExpectedVersion string `yaml:"expected_version"`

	// EndpointDir is the directory clients publish their sockets in.
	EndpointDir string `yaml:"endpoint_dir"`

	// SocketPath serves the operator control surface.
	SocketPath   string `yaml:"socket_path"`
	HealthSocket string `yaml:"health_socket"`

	// AutoInvite invites every available client on each refresh.
	// Default: true (development), false (production)
	AutoInvite bool `yaml:"auto_invite"`

	RefreshInterval time.Duration  `yaml:"refresh_interval"`
	Timeouts        TimeoutsConfig `yaml:"timeouts"`
}

// TimeoutsConfig bounds the conductor's remote calls.
type TimeoutsConfig struct {
	Handshake time.Duration `yaml:"handshake"`
	AppList   time.Duration `yaml:"app_list"`
	Status    time.Duration `yaml:"status"`
	Invite    time.Duration `yaml:"invite"`
	Probe     time.Duration `yaml:"probe"`
}

// ServiceManagerConfig configures concert-service-manager.
type ServiceManagerConfig struct {
	// Definitions is the directory of JSONC service definitions.
	Definitions string `yaml:"definitions"`

	SocketPath   string `yaml:"socket_path"`
	HealthSocket string `yaml:"health_socket"`

	// LedgerPath records running children so that a restarted manager
	// can kill the ones its predecessor left behind.
	LedgerPath string `yaml:"ledger_path"`

	// OutputDir receives compressed service output. Empty disables
	// archiving.
	OutputDir string `yaml:"output_dir"`

	// DisablePollInterval and EscalateAfterPolls bound how long a
	// terminating service may take before it is killed.
	DisablePollInterval time.Duration `yaml:"disable_poll_interval"`
	EscalateAfterPolls  int           `yaml:"escalate_after_polls"`
}

// ClientConfig configures concert-client, the app manager of one
// robot or device.
type ClientConfig struct {
	// EndpointName is the client's routing name. The socket is
	// published as <conductor.endpoint_dir>/<endpoint_name>.sock unless
	// SocketPath is set.
	EndpointName string `yaml:"endpoint_name"`
	SocketPath   string `yaml:"socket_path"`

	PlatformName string `yaml:"platform_name"`
	Robot        string `yaml:"robot"`

	// LocalOnly refuses controllers on other hosts.
	LocalOnly bool `yaml:"local_only"`

	// Whitelist and Blacklist hold controller ID patterns (path.Match
	// syntax).
	Whitelist []string `yaml:"whitelist"`
	Blacklist []string `yaml:"blacklist"`

	Apps []AppConfig `yaml:"apps"`
}

// AppConfig describes one application a client offers.
type AppConfig struct {
	Name          string `yaml:"name"`
	DisplayName   string `yaml:"display_name"`
	Description   string `yaml:"description"`
	Compatibility string `yaml:"compatibility"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Unset fields keep the base value.
type ConfigOverrides struct {
	Paths          *PathsConfig             `yaml:"paths,omitempty"`
	Conductor      *ConductorOverrides      `yaml:"conductor,omitempty"`
	ServiceManager *ServiceManagerOverrides `yaml:"service_manager,omitempty"`
	Client         *ClientOverrides         `yaml:"client,omitempty"`
}

// ConductorOverrides are the conductor fields an environment may change.
type ConductorOverrides struct {
	ControllerID    string        `yaml:"controller_id"`
	ExpectedVersion string        `yaml:"expected_version"`
	EndpointDir     string        `yaml:"endpoint_dir"`
	AutoInvite      *bool         `yaml:"auto_invite"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// ServiceManagerOverrides are the service manager fields an environment
// may change.
type ServiceManagerOverrides struct {
	Definitions        string `yaml:"definitions"`
	OutputDir          string `yaml:"output_dir"`
	EscalateAfterPolls int    `yaml:"escalate_after_polls"`
}

// ClientOverrides are the client fields an environment may change.
type ClientOverrides struct {
	LocalOnly *bool    `yaml:"local_only"`
	Whitelist []string `yaml:"whitelist"`
	Blacklist []string `yaml:"blacklist"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:  "${HOME}/.cache/concert",
			Run:   "${CONCERT_ROOT}/run",
			State: "${CONCERT_ROOT}/state",
		},
		Conductor: ConductorConfig{
			ControllerID:    "concert-" + hostname,
			ExpectedVersion: version.ProtocolVersion,
			EndpointDir:     "${CONCERT_RUN}/clients",
			SocketPath:      "${CONCERT_RUN}/conductor.sock",
			HealthSocket:    "${CONCERT_RUN}/conductor-health.sock",
			AutoInvite:      true,
			RefreshInterval: 2 * time.Second,
			Timeouts: TimeoutsConfig{
				Handshake: 1500 * time.Millisecond,
				AppList:   500 * time.Millisecond,
				Status:    1500 * time.Millisecond,
				Invite:    300 * time.Millisecond,
				Probe:     300 * time.Millisecond,
			},
		},
		ServiceManager: ServiceManagerConfig{
			Definitions:         "${CONCERT_ROOT}/services",
			SocketPath:          "${CONCERT_RUN}/service-manager.sock",
			HealthSocket:        "${CONCERT_RUN}/service-manager-health.sock",
			LedgerPath:          "${CONCERT_STATE}/services.ledger",
			OutputDir:           "${CONCERT_STATE}/service-output",
			DisablePollInterval: time.Second,
			EscalateAfterPolls:  10,
		},
		Client: ClientConfig{
			EndpointName: hostname,
			PlatformName: hostname,
		},
	}
}

// Load loads configuration from the CONCERT_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if CONCERT_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfigPath)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your concert.yaml config file, or use --config flag", EnvConfigPath)
	}

	return LoadFile(configPath)
}

// LoadFlag loads path when it is set (the --config flag) and falls
// back to [Load] otherwise. The result is validated.
func LoadFlag(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = LoadFile(path)
	} else {
		cfg, err = Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values; the only expansion performed is ${HOME} and
// similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production never invites on its own unless the production
		// section says so.
		if overrides == nil || overrides.Conductor == nil || overrides.Conductor.AutoInvite == nil {
			c.Conductor.AutoInvite = false
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Run != "" {
			c.Paths.Run = overrides.Paths.Run
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if conductor := overrides.Conductor; conductor != nil {
		if conductor.ControllerID != "" {
			c.Conductor.ControllerID = conductor.ControllerID
		}
		if conductor.ExpectedVersion != "" {
			c.Conductor.ExpectedVersion = conductor.ExpectedVersion
		}
		if conductor.EndpointDir != "" {
			c.Conductor.EndpointDir = conductor.EndpointDir
		}
		if conductor.AutoInvite != nil {
			c.Conductor.AutoInvite = *conductor.AutoInvite
		}
		if conductor.RefreshInterval > 0 {
			c.Conductor.RefreshInterval = conductor.RefreshInterval
		}
	}

	if manager := overrides.ServiceManager; manager != nil {
		if manager.Definitions != "" {
			c.ServiceManager.Definitions = manager.Definitions
		}
		if manager.OutputDir != "" {
			c.ServiceManager.OutputDir = manager.OutputDir
		}
		if manager.EscalateAfterPolls > 0 {
			c.ServiceManager.EscalateAfterPolls = manager.EscalateAfterPolls
		}
	}

	if client := overrides.Client; client != nil {
		if client.LocalOnly != nil {
			c.Client.LocalOnly = *client.LocalOnly
		}
		if client.Whitelist != nil {
			c.Client.Whitelist = client.Whitelist
		}
		if client.Blacklist != nil {
			c.Client.Blacklist = client.Blacklist
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
// Each path level may refer to the levels before it.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CONCERT_ROOT"] = c.Paths.Root
	c.Paths.Run = expandVars(c.Paths.Run, vars)
	vars["CONCERT_RUN"] = c.Paths.Run
	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["CONCERT_STATE"] = c.Paths.State

	for _, field := range []*string{
		&c.Conductor.EndpointDir,
		&c.Conductor.SocketPath,
		&c.Conductor.HealthSocket,
		&c.ServiceManager.Definitions,
		&c.ServiceManager.SocketPath,
		&c.ServiceManager.HealthSocket,
		&c.ServiceManager.LedgerPath,
		&c.ServiceManager.OutputDir,
		&c.Client.SocketPath,
	} {
		*field = expandVars(*field, vars)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// ClientSocketPath returns where concert-client publishes its endpoint.
func (c *Config) ClientSocketPath() string {
	if c.Client.SocketPath != "" {
		return c.Client.SocketPath
	}
	return filepath.Join(c.Conductor.EndpointDir, c.Client.EndpointName+".sock")
}

// Validate checks the configuration for errors. Every problem is
// reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}

	if c.Conductor.ControllerID == "" {
		errs = append(errs, errors.New("conductor.controller_id is required"))
	}
	if c.Conductor.ExpectedVersion == "" {
		errs = append(errs, errors.New("conductor.expected_version is required"))
	}
	if c.Conductor.EndpointDir == "" {
		errs = append(errs, errors.New("conductor.endpoint_dir is required"))
	}
	if c.Conductor.RefreshInterval <= 0 {
		errs = append(errs, errors.New("conductor.refresh_interval must be positive"))
	}
	for name, timeout := range map[string]time.Duration{
		"handshake": c.Conductor.Timeouts.Handshake,
		"app_list":  c.Conductor.Timeouts.AppList,
		"status":    c.Conductor.Timeouts.Status,
		"invite":    c.Conductor.Timeouts.Invite,
		"probe":     c.Conductor.Timeouts.Probe,
	} {
		if timeout <= 0 {
			errs = append(errs, fmt.Errorf("conductor.timeouts.%s must be positive", name))
		}
	}

	if c.ServiceManager.DisablePollInterval <= 0 {
		errs = append(errs, errors.New("service_manager.disable_poll_interval must be positive"))
	}
	if c.ServiceManager.EscalateAfterPolls < 1 {
		errs = append(errs, errors.New("service_manager.escalate_after_polls must be at least 1"))
	}

	if c.Client.EndpointName == "" {
		errs = append(errs, errors.New("client.endpoint_name is required"))
	}
	for _, pattern := range append(append([]string{}, c.Client.Whitelist...), c.Client.Blacklist...) {
		if _, err := path.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("client controller pattern %q: %w", pattern, err))
		}
	}
	for index, app := range c.Client.Apps {
		if app.Name == "" {
			errs = append(errs, fmt.Errorf("client.apps[%d].name is required", index))
		}
	}

	return errors.Join(errs...)
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Run,
		c.Paths.State,
		c.Conductor.EndpointDir,
		c.ServiceManager.OutputDir,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
