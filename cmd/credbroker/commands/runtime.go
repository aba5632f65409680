package commands

import (
	"context"
	"io"
	"os"

	"github.com/systmms/credbroker/internal/authority"
	"github.com/systmms/credbroker/internal/broker"
	"github.com/systmms/credbroker/internal/config"
	"github.com/systmms/credbroker/internal/contracts"
	"github.com/systmms/credbroker/internal/logging"
	"github.com/systmms/credbroker/internal/store"
	"github.com/systmms/credbroker/internal/transport"
	"github.com/systmms/credbroker/pkg/secret"
)

// Runtime is shared by every command: the configuration plus the process dependencies a
// broker is assembled from. Zero-valued dependencies are replaced by the real ones.
type Runtime struct {
	Config *config.Config

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Storage          contracts.SecureStorage
	Prompts          contracts.Prompts
	AccessCheck      store.AccessCheck
	AzureCredentials authority.CredentialFactory
	VstsBaseDomain   string
	TokenServiceURL  string
}

// NewRuntime wires a runtime to the process streams.
func NewRuntime(cfg *config.Config) *Runtime {
	return &Runtime{
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (r *Runtime) logger() *logging.Logger {
	if r.Config.Logger == nil {
		return logging.Nop()
	}
	return r.Config.Logger
}

// Definition loads the configuration once.
func (r *Runtime) Definition() (*config.Definition, error) {
	if r.Config.Definition == nil {
		if err := r.Config.Load(); err != nil {
			return nil, err
		}
	}
	return r.Config.Definition, nil
}

func (r *Runtime) transport(def *config.Definition) (*transport.Client, error) {
	tc, err := def.TransportConfig()
	if err != nil {
		return nil, err
	}
	return transport.NewClient(tc, r.logger().Named("http"))
}

func (r *Runtime) settings(def *config.Definition) (broker.Settings, func(), error) {
	s, err := def.BrokerSettings()
	if err != nil {
		return broker.Settings{}, nil, err
	}
	client, err := r.transport(def)
	if err != nil {
		return broker.Settings{}, nil, err
	}

	logger := r.logger()
	s.Transport = client
	s.Logger = logger
	s.AccessCheck = r.AccessCheck
	s.AzureCredentials = r.AzureCredentials
	s.VstsBaseDomain = r.VstsBaseDomain
	s.TokenServiceURL = r.TokenServiceURL

	s.Storage = r.Storage
	if s.Storage == nil {
		s.Storage = store.NewKeyringStorage(logger.Named("keyring"))
	}

	release := func() {}
	s.Prompts = r.Prompts
	if s.Prompts == nil && s.Interactive != broker.InteractiveNever {
		tp := NewTerminalPrompts(r.Stderr)
		s.Prompts = tp
		release = func() { _ = tp.Close() }
	}
	return s, release, nil
}

// Broker assembles the broker for targetURI. The returned func releases the terminal and
// must be called once the broker is no longer used.
func (r *Runtime) Broker(ctx context.Context, targetURI secret.TargetURI) (*broker.Broker, func(), error) {
	def, err := r.Definition()
	if err != nil {
		return nil, nil, err
	}
	s, release, err := r.settings(def)
	if err != nil {
		return nil, nil, err
	}
	b, err := broker.Create(ctx, targetURI, s)
	if err != nil {
		release()
		return nil, nil, err
	}
	return b, release, nil
}

// Vsts returns a VSTS authority for detection without building a broker.
func (r *Runtime) Vsts() (*authority.Vsts, error) {
	def, err := r.Definition()
	if err != nil {
		return nil, err
	}
	client, err := r.transport(def)
	if err != nil {
		return nil, err
	}
	timeout, err := def.AuthorityTimeout()
	if err != nil {
		return nil, err
	}
	return authority.NewVsts(client, authority.VstsOptions{
		Timeout:         timeout,
		BaseDomain:      r.VstsBaseDomain,
		TokenServiceURL: r.TokenServiceURL,
		Logger:          r.logger().Named("vsts"),
	}), nil
}
