package main

import (
	"context"
	"fmt"
	"io"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/backend/factory"
	"github.com/damacus/iron-folders/internal/browser"
	"github.com/damacus/iron-folders/internal/config"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/localfiles"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/upload"
	"github.com/spf13/afero"
)

// credentialStore is the subset of credentials.Store the commands use
type credentialStore interface {
	credentials.Provider
	SaveConfig(service string, creds credentials.Credentials) error
	DeleteConfig(service string) error
	Services() ([]string, error)
}

// app holds what every command shares. Tests build one directly.
type app struct {
	cfg     *config.Config
	store   credentialStore
	factory backend.Factory
	files   *localfiles.Source
	out     io.Writer
	closer  io.Closer
}

// loadApp reads the configuration and opens the credential store
func loadApp(configPath string, out io.Writer) (*app, error) {
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	key, err := credentials.LoadOrCreateKey(cfg.Credentials.KeyFile)
	if err != nil {
		return nil, err
	}
	sealer, err := credentials.NewSealer(key)
	if err != nil {
		return nil, err
	}
	store, err := credentials.OpenStore(cfg.Credentials.DB, sealer)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		store:   store,
		factory: factory.New(cfg.FactoryConfig()),
		files:   localfiles.New(afero.NewOsFs()),
		out:     out,
		closer:  store,
	}, nil
}

func (a *app) Close() error {
	_ = logging.Sync()
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func (a *app) session(service string) *browser.Session {
	return browser.New(service, a.store, a.factory,
		browser.WithTimeout(a.cfg.CallTimeout()),
		browser.WithValidator(upload.NewValidator(a.cfg.Upload.AllowedExtensions)),
		browser.WithLogger(logging.L()),
	)
}

// open starts a session and enters container. An empty container is only
// accepted when the credentials pin one.
func (a *app) open(ctx context.Context, service, container string) (*browser.Session, error) {
	s := a.session(service)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	if s.ImplicitContainer() {
		if container != "" && container != s.Container() {
			return nil, fmt.Errorf("%s credentials are pinned to container %q", service, s.Container())
		}
		return s, nil
	}
	if container == "" {
		return nil, fmt.Errorf("--container is required for %s (see the containers command)", service)
	}
	if err := s.SelectContainer(ctx, container); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
