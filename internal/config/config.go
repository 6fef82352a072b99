// Package config defines the immutable server configuration.
//
// Configuration is read once at startup from environment variables, then
// overridden by CLI flags, and the resulting Config value is passed explicitly
// into every component constructor. Nothing reassigns it afterwards.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ProxyMode selects which routes the proxy exposes on the external port.
type ProxyMode string

const (
	// ModeWrapperOnly routes only /mcp traffic; everything else is a 404.
	ModeWrapperOnly ProxyMode = "wrapper"
	// ModeDual additionally routes all unmatched paths to the REST backend.
	ModeDual ProxyMode = "dual"
)

// Config holds all tunables for the gateway. Immutable after Load returns.
type Config struct {
	ExternalPort int `envconfig:"PORT" default:"8080"`
	RESTPort     int `envconfig:"REST_PORT" default:"8081"`
	WrapperPort  int `envconfig:"MCP_PORT" default:"8082"`

	// Command lines for the two supervised backends, whitespace-separated.
	// The supervisor appends --host/--port (and --rest-url for the wrapper).
	RESTCommand    string `envconfig:"REST_COMMAND" default:"python3 -m mcp_eval_server.rest_server"`
	WrapperCommand string `envconfig:"MCP_COMMAND" default:"python3 -m mcp_eval_server.mcp_wrapper"`

	Mode ProxyMode `envconfig:"PROXY_MODE" default:"wrapper"`

	// LaunchDelay is the inter-launch wait used when readiness probing is
	// disabled; with probing enabled it caps how long the probe may take.
	LaunchDelay       time.Duration `envconfig:"LAUNCH_DELAY" default:"5s"`
	ProbeReadiness    bool          `envconfig:"PROBE_READINESS" default:"true"`
	ReadinessInterval time.Duration `envconfig:"READINESS_INTERVAL" default:"100ms"`
	ReadinessDeadline time.Duration `envconfig:"READINESS_DEADLINE" default:"30s"`

	ProxyTimeout  time.Duration `envconfig:"PROXY_TIMEOUT" default:"30s"`
	HealthTimeout time.Duration `envconfig:"HEALTH_TIMEOUT" default:"5s"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`

	// AuditDBPath enables the sqlite process-lifecycle log when non-empty.
	AuditDBPath string `envconfig:"AUDIT_DB_PATH" default:""`

	ServiceName string `envconfig:"SERVICE_NAME" default:"MCP Evaluation Server"`
	Version     string `envconfig:"SERVICE_VERSION" default:"0.1.0"`
}

// Load builds a Config from the environment and the given CLI arguments.
// Flags take precedence over environment variables.
func Load(args []string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	fs := flag.NewFlagSet("evalgate", flag.ContinueOnError)
	fs.IntVar(&cfg.ExternalPort, "port", cfg.ExternalPort, "External listen port")
	fs.IntVar(&cfg.RESTPort, "rest-port", cfg.RESTPort, "Internal REST API port")
	fs.IntVar(&cfg.WrapperPort, "mcp-port", cfg.WrapperPort, "Internal MCP wrapper port")
	mode := fs.String("mode", string(cfg.Mode), "Proxy mode: wrapper or dual")
	fs.StringVar(&cfg.AuditDBPath, "audit-db", cfg.AuditDBPath, "Path to the sqlite lifecycle log (empty disables)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Mode = ProxyMode(*mode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures (port collisions, unknown modes, empty commands).
func (c *Config) Validate() error {
	if c.ExternalPort <= 0 || c.RESTPort <= 0 || c.WrapperPort <= 0 {
		return fmt.Errorf("all ports must be positive (external=%d rest=%d wrapper=%d)",
			c.ExternalPort, c.RESTPort, c.WrapperPort)
	}
	if c.RESTPort == c.WrapperPort || c.RESTPort == c.ExternalPort || c.WrapperPort == c.ExternalPort {
		return fmt.Errorf("ports must be distinct (external=%d rest=%d wrapper=%d)",
			c.ExternalPort, c.RESTPort, c.WrapperPort)
	}
	if c.Mode != ModeWrapperOnly && c.Mode != ModeDual {
		return fmt.Errorf("invalid proxy mode %q (expected %q or %q)", c.Mode, ModeWrapperOnly, ModeDual)
	}
	if len(c.RESTArgv()) == 0 {
		return fmt.Errorf("REST backend command is empty")
	}
	if len(c.WrapperArgv()) == 0 {
		return fmt.Errorf("wrapper backend command is empty")
	}
	return nil
}

// RESTArgv returns the REST backend command split into argv form.
func (c *Config) RESTArgv() []string {
	return strings.Fields(c.RESTCommand)
}

// WrapperArgv returns the wrapper backend command split into argv form.
func (c *Config) WrapperArgv() []string {
	return strings.Fields(c.WrapperCommand)
}
