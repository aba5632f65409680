package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/internal/broker"
	dserrors "github.com/systmms/credbroker/internal/errors"
	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/store"
	"github.com/systmms/credbroker/internal/transport"
	"github.com/systmms/credbroker/pkg/scope"
)

//go:embed schema.json
var schema []byte

// Environment variables that override the configuration file.
const (
	EnvNamespace   = "CREDBROKER_NAMESPACE"
	EnvAuthority   = "CREDBROKER_AUTHORITY"
	EnvInteractive = "CREDBROKER_INTERACTIVE"
	EnvDebug       = "CREDBROKER_DEBUG"
	EnvHTTPProxy   = "CREDBROKER_HTTP_PROXY"
)

// Config holds the runtime configuration
type Config struct {
	Path string
	// Required makes a missing file an error. It is set when the path came from --config.
	Required bool
	Logger   *logging.Logger
	Debug    bool
	// LookupEnv reads overrides; nil means os.LookupEnv.
	LookupEnv  func(string) (string, bool)
	Definition *Definition
}

// Definition is the config.yaml structure.
type Definition struct {
	Version          int    `yaml:"version,omitempty"`
	Namespace        string `yaml:"namespace,omitempty"`
	RefreshNamespace string `yaml:"refreshNamespace,omitempty"`
	LegacyNamespace  string `yaml:"legacyNamespace,omitempty"`
	IdeNamespace     string `yaml:"ideNamespace,omitempty"`

	Authority   string `yaml:"authority,omitempty"`
	Interactive string `yaml:"interactive,omitempty"`
	Validate    bool   `yaml:"validate,omitempty"`
	// Preserve turns erase into a no-op.
	Preserve    bool   `yaml:"preserve,omitempty"`
	UseHTTPPath bool   `yaml:"useHttpPath,omitempty"`
	HTTPProxy   string `yaml:"httpProxy,omitempty"`
	UserAgent   string `yaml:"userAgent,omitempty"`

	Timeouts Timeouts        `yaml:"timeouts,omitempty"`
	Azure    AzureSettings   `yaml:"azure,omitempty"`
	Vsts     ScopeSettings   `yaml:"vsts,omitempty"`
	GitHub   ScopeSettings   `yaml:"github,omitempty"`
	Metrics  MetricsSettings `yaml:"metrics,omitempty"`
}

// Timeouts are Go duration strings.
type Timeouts struct {
	Network   string `yaml:"network,omitempty"`
	Authority string `yaml:"authority,omitempty"`
}

type AzureSettings struct {
	ClientID      string `yaml:"clientId,omitempty"`
	AuthorityHost string `yaml:"authorityHost,omitempty"`
	Resource      string `yaml:"resource,omitempty"`
	RedirectURL   string `yaml:"redirectUrl,omitempty"`
}

// ScopeSettings lists the scopes requested when minting tokens. Empty keeps the built-in
// defaults.
type ScopeSettings struct {
	Scopes []string `yaml:"scopes,omitempty"`
}

type MetricsSettings struct {
	// Textfile receives a Prometheus text dump when the process exits.
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Definition {
	return &Definition{
		Namespace:        "git",
		RefreshNamespace: "adal",
		LegacyNamespace:  "git-refresh",
		IdeNamespace:     "vsts-ide",
		Authority:        broker.AuthorityAuto,
		Interactive:      "auto",
		Timeouts: Timeouts{
			Network:   transport.DefaultTimeout.String(),
			Authority: authority.DefaultTimeout.String(),
		},
	}
}

// DefaultPath is config.yaml under the user configuration directory
// ($XDG_CONFIG_HOME/credbroker on Linux).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "credbroker", "config.yaml")
}

// Load reads the configuration file over the defaults, validates it against the embedded
// schema and applies environment overrides.
func (c *Config) Load() error {
	def := Default()

	data, err := c.read()
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if err := parse(data, def); err != nil {
			return err
		}
	}

	if err := c.applyEnv(def); err != nil {
		return err
	}
	if err := def.validate(); err != nil {
		return err
	}

	c.Definition = def
	return nil
}

func (c *Config) read() ([]byte, error) {
	if c.Path == "" {
		if c.Required {
			return nil, dserrors.ConfigError{
				Field:      "path",
				Message:    "no configuration path given",
				Suggestion: "Pass --config with the path to config.yaml",
			}
		}
		return nil, nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if !c.Required {
				if c.Logger != nil {
					c.Logger.Debug("no configuration at %s, using defaults", c.Path)
				}
				return nil, nil
			}
			return nil, dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path, or drop the flag to use built-in defaults",
			}
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}
	return data, nil
}

func parse(data []byte, def *Definition) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		return nil
	}
	if err := validateWithSchema(raw); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, def); err != nil {
		return dserrors.ConfigError{
			Message:    "configuration does not match the expected structure",
			Suggestion: err.Error(),
		}
	}
	return nil
}

func validateWithSchema(raw map[string]interface{}) error {
	doc, err := json.Marshal(raw)
	if err != nil {
		return dserrors.ConfigError{
			Message:    "configuration cannot be represented as JSON",
			Suggestion: "Use string keys and plain scalar values",
		}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("  - %s", desc))
	}
	return dserrors.ConfigError{
		Message:    "schema validation failed:\n" + strings.Join(problems, "\n"),
		Suggestion: "Compare your config.yaml with the documented keys",
	}
}

func (c *Config) applyEnv(def *Definition) error {
	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvNamespace); ok && v != "" {
		def.Namespace = v
	}
	if v, ok := lookup(EnvAuthority); ok && v != "" {
		def.Authority = strings.ToLower(v)
	}
	if v, ok := lookup(EnvInteractive); ok && v != "" {
		def.Interactive = strings.ToLower(v)
	}
	if v, ok := lookup(EnvHTTPProxy); ok && v != "" {
		def.HTTPProxy = v
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return dserrors.ConfigError{
				Field:      EnvDebug,
				Value:      v,
				Message:    "not a boolean",
				Suggestion: "Set it to true or false",
			}
		}
		c.Debug = c.Debug || debug
	}
	return nil
}

// validate covers what the schema cannot see: values that arrived through the environment
// and durations.
func (d *Definition) validate() error {
	for field, ns := range map[string]string{
		"namespace":        d.Namespace,
		"refreshNamespace": d.RefreshNamespace,
		"legacyNamespace":  d.LegacyNamespace,
		"ideNamespace":     d.IdeNamespace,
	} {
		if err := store.ValidateNamespace(ns); err != nil {
			return dserrors.ConfigError{
				Field:      field,
				Value:      ns,
				Message:    err.Error(),
				Suggestion: dserrors.Suggest(err),
			}
		}
	}

	switch d.Authority {
	case broker.AuthorityAuto, broker.AuthorityBasic, broker.AuthorityGitHub, broker.AuthorityAAD, broker.AuthorityMSA:
	default:
		return dserrors.ConfigError{
			Field:      "authority",
			Value:      d.Authority,
			Message:    "unknown authority",
			Suggestion: "Use one of auto, basic, github, aad, msa",
		}
	}

	if _, err := broker.ParseInteractivity(d.Interactive); err != nil {
		return dserrors.ConfigError{
			Field:      "interactive",
			Value:      d.Interactive,
			Message:    err.Error(),
			Suggestion: "Use one of auto, always, never",
		}
	}

	if _, err := d.NetworkTimeout(); err != nil {
		return err
	}
	if _, err := d.AuthorityTimeout(); err != nil {
		return err
	}
	return nil
}

// NetworkTimeout bounds generic network calls.
func (d *Definition) NetworkTimeout() (time.Duration, error) {
	return parseTimeout("timeouts.network", d.Timeouts.Network, transport.DefaultTimeout)
}

// AuthorityTimeout bounds authority calls.
func (d *Definition) AuthorityTimeout() (time.Duration, error) {
	return parseTimeout("timeouts.authority", d.Timeouts.Authority, authority.DefaultTimeout)
}

func parseTimeout(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, dserrors.ConfigError{
			Field:      field,
			Value:      value,
			Message:    "invalid timeout",
			Suggestion: "Use a positive Go duration such as 90s or 2m",
		}
	}
	return d, nil
}

// TransportConfig returns the process-wide HTTP settings.
func (d *Definition) TransportConfig() (transport.Config, error) {
	timeout, err := d.NetworkTimeout()
	if err != nil {
		return transport.Config{}, err
	}
	return transport.Config{
		UserAgent:      d.UserAgent,
		Proxy:          d.HTTPProxy,
		DefaultTimeout: timeout,
	}, nil
}

// BrokerSettings fills everything broker.Create needs except the runtime dependencies
// (storage, transport, prompts, logger), which the caller owns.
func (d *Definition) BrokerSettings() (broker.Settings, error) {
	interactive, err := broker.ParseInteractivity(d.Interactive)
	if err != nil {
		return broker.Settings{}, err
	}
	timeout, err := d.AuthorityTimeout()
	if err != nil {
		return broker.Settings{}, err
	}

	return broker.Settings{
		Authority:        d.Authority,
		Namespace:        d.Namespace,
		RefreshNamespace: d.RefreshNamespace,
		LegacyNamespace:  d.LegacyNamespace,
		IdeNamespace:     d.IdeNamespace,
		UseHTTPPath:      d.UseHTTPPath,
		Interactive:      interactive,
		Validate:         d.Validate,
		VstsScope:        scopeOrDefault(d.Vsts.Scopes, scope.VstsDefault),
		GitHubScope:      scopeOrDefault(d.GitHub.Scopes, scope.GitHubDefault),
		Azure: authority.AzureConfig{
			AuthorityHost: d.Azure.AuthorityHost,
			ClientID:      d.Azure.ClientID,
			Resource:      d.Azure.Resource,
			RedirectURL:   d.Azure.RedirectURL,
			Timeout:       timeout,
		},
		AuthorityTimeout: timeout,
	}, nil
}

func scopeOrDefault(scopes []string, fallback scope.Scope) scope.Scope {
	if s := scope.New(scopes...); !s.IsEmpty() {
		return s
	}
	return fallback
}
