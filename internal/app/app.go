package app

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/tinyclients/internal/config"
	"github.com/samvad-hq/tinyclients/internal/logger"
	"github.com/samvad-hq/tinyclients/pkg/fireeye"
	"github.com/samvad-hq/tinyclients/pkg/httpclient"
	"github.com/samvad-hq/tinyclients/pkg/nessus"
	"github.com/samvad-hq/tinyclients/pkg/session"
	"github.com/samvad-hq/tinyclients/pkg/vxstream"
)

// ErrNotConfigured is returned when a service without a base URL is requested.
var ErrNotConfigured = errors.New("service not configured")

// App holds the service clients, built once from config and reused for the
// process lifetime, plus the token store shared by CLI invocations.
type App struct {
	cfg       *config.Config
	log       logger.Logger
	transport httpclient.Transport
	tokens    session.Closer

	fireEye  *fireeye.Client
	nessus   *nessus.Client
	vxStream *vxstream.Client
}

// New builds every configured client. A service with a base URL but
// incomplete credentials is a startup error.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	return NewWithTransport(cfg, log, httpclient.NewRestyClient(cfg.HTTPTimeout))
}

// NewWithTransport is New with an injected transport.
func NewWithTransport(cfg *config.Config, log logger.Logger, transport httpclient.Transport) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	a := &App{cfg: cfg, log: log, transport: transport}
	var enabled []string

	if cfg.FireEye.Enabled() {
		c, err := fireeye.New(fireeye.Config{
			BaseURL:  cfg.FireEye.BaseURL,
			Username: cfg.FireEye.Username,
			Secret:   cfg.FireEye.Secret,
		}, transport, log)
		if err != nil {
			return nil, err
		}
		a.fireEye = c
		enabled = append(enabled, fireeye.ServiceName)
	}
	if cfg.Nessus.Enabled() {
		c, err := nessus.New(nessus.Config{
			BaseURL:   cfg.Nessus.BaseURL,
			AccessKey: cfg.Nessus.AccessKey,
			SecretKey: cfg.Nessus.SecretKey,
		}, transport, log)
		if err != nil {
			return nil, err
		}
		a.nessus = c
		enabled = append(enabled, nessus.ServiceName)
	}
	if cfg.VxStream.Enabled() {
		c, err := vxstream.New(vxstream.Config{
			BaseURL: cfg.VxStream.BaseURL,
			APIKey:  cfg.VxStream.APIKey,
			Secret:  cfg.VxStream.Secret,
		}, transport, log)
		if err != nil {
			return nil, err
		}
		a.vxStream = c
		enabled = append(enabled, vxstream.ServiceName)
	}

	log.InfoObj("service clients initialized", "clients_meta", map[string]any{
		"count":    len(enabled),
		"services": enabled,
	})
	return a, nil
}

// Tokens opens the configured token store on first use.
func (a *App) Tokens() (session.Store, error) {
	if a.tokens != nil {
		return a.tokens, nil
	}
	store, err := session.NewStore(a.cfg.TokenStore, a.cfg.TokenStorePath, session.Options{
		TokenTTL:        a.cfg.TokenTTL,
		CleanupInterval: a.cfg.TokenCleanupInterval,
		Session:         a.cfg.TokenSession,
	})
	if err != nil {
		return nil, fmt.Errorf("init token store: %w", err)
	}
	a.log.InfoObj("token store initialized", "token_store_config", map[string]any{
		"type":                     a.cfg.TokenStore,
		"path":                     a.cfg.TokenStorePath,
		"token_ttl_seconds":        int(a.cfg.TokenTTL.Seconds()),
		"cleanup_interval_seconds": int(a.cfg.TokenCleanupInterval.Seconds()),
	})
	a.tokens = store
	return store, nil
}

// FireEye returns the FireEye client.
func (a *App) FireEye() (*fireeye.Client, error) {
	if a.fireEye == nil {
		return nil, fmt.Errorf("%s: %w", fireeye.ServiceName, ErrNotConfigured)
	}
	return a.fireEye, nil
}

// Nessus returns the Nessus client.
func (a *App) Nessus() (*nessus.Client, error) {
	if a.nessus == nil {
		return nil, fmt.Errorf("%s: %w", nessus.ServiceName, ErrNotConfigured)
	}
	return a.nessus, nil
}

// VxStream returns the VxStream client.
func (a *App) VxStream() (*vxstream.Client, error) {
	if a.vxStream == nil {
		return nil, fmt.Errorf("%s: %w", vxstream.ServiceName, ErrNotConfigured)
	}
	return a.vxStream, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() logger.Logger { return a.log }

// Close safely closes the token store, logging any errors encountered.
func (a *App) Close() {
	if a == nil || a.tokens == nil {
		return
	}
	if err := a.tokens.Close(); err != nil {
		a.log.ErrorObj("token store close failed", "error", err)
	}
	a.tokens = nil
}
