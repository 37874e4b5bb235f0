// Package factory builds the storage adapter for a service identity from
// its credentials and the configured access mode.
package factory

import (
	"context"
	"fmt"
	"net/http"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/backend/awss3"
	"github.com/damacus/iron-folders/internal/backend/azureblob"
	"github.com/damacus/iron-folders/internal/backend/miniobackend"
	"github.com/damacus/iron-folders/internal/backend/proxy"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/metrics"
)

// Access modes
const (
	ModeDirect = "direct"
	ModeProxy  = "proxy"
)

// Service configures how one service identity is reached
type Service struct {
	Mode     string
	Endpoint string
	UseSSL   *bool
}

// Config is the factory configuration
type Config struct {
	ProxyURL   string
	Services   map[string]Service
	HTTPClient *http.Client
	// MinioFactory overrides the minio-go client constructor
	MinioFactory miniobackend.ClientFactory
	// AWSClient overrides the aws-sdk-go-v2 client constructor
	AWSClient awss3.ClientFunc
}

// Factory implements backend.Factory
type Factory struct {
	cfg Config
}

var _ backend.Factory = (*Factory)(nil)

// New creates a factory
func New(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) service(name string) Service {
	s := f.cfg.Services[name]
	if s.Mode == "" {
		s.Mode = ModeDirect
	}
	return s
}

// NewAdapter builds an instrumented adapter for service
func (f *Factory) NewAdapter(service string, creds credentials.Credentials) (backend.Adapter, error) {
	if err := credentials.Validate(service, creds); err != nil {
		return nil, err
	}
	a, err := f.build(service, creds)
	if err != nil {
		return nil, err
	}
	return metrics.Instrument(service, a), nil
}

func (f *Factory) build(service string, creds credentials.Credentials) (backend.Adapter, error) {
	svc := f.service(service)

	if url, ok := creds.(credentials.URL); ok {
		return azureblob.New(url)
	}
	keyed := creds.(credentials.Keyed)

	if svc.Mode == ModeProxy {
		return proxy.New(f.cfg.ProxyURL, service, keyed, f.cfg.HTTPClient)
	}
	if svc.Mode != ModeDirect {
		return nil, fmt.Errorf("%s: unknown mode %q", service, svc.Mode)
	}

	switch service {
	case credentials.ServiceAWS:
		return awss3.New(context.Background(), keyed, awss3.Options{
			Name:     service,
			Endpoint: svc.Endpoint,
			Client:   f.cfg.AWSClient,
		})
	case credentials.ServiceWasabi, credentials.ServiceMinio:
		return miniobackend.New(keyed, miniobackend.Options{
			Name:     service,
			Endpoint: svc.Endpoint,
			Secure:   svc.UseSSL,
			Factory:  f.cfg.MinioFactory,
		})
	}
	return nil, fmt.Errorf("unknown service %q", service)
}
